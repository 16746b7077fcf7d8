package domain

import "fmt"

// Table is the complete, immutable set of Domains/Maps/Auths loaded once
// from configuration at startup (spec.md §3 "Lifecycle": "Domains, Maps,
// Auth descriptors are immutable after start-up"). It is safe for
// concurrent read access from any number of goroutines with no locking.
type Table struct {
	domains map[string]*Domain
	// maps holds, per logical map name, every Map instance defined for
	// it -- multiple instances differ in accepted keys (spec.md §3).
	maps map[string][]*Map
	auths map[string]*Auth

	// LuaScript is the path configured under "[lua] script", shared by
	// every MapScript/scripted-Auth instance in the table.
	LuaScript string
}

// RawMap is the TOML-shaped form of a Map definition, as decoded from one
// "[[map]]" array entry carrying its own name key; sibling entries with
// the same name form alternates differentiated by key. The keyed-table
// form ("[map.<name>]" / "[map.<name>.<keyname>]") is not decoded.
type RawMap struct {
	Name        string
	Type        string
	Format      string
	Key         string
	Keys        []string
	KeyAlias    map[string]string `mapstructure:"key_alias"`
	File        string
	LuaFunction string `mapstructure:"lua_function"`
	Output      map[string]string
}

// RawAuth is the TOML-shaped form of one "[[auth]]" array entry; the
// keyed-table form ("[auth.<name>]") is not decoded.
type RawAuth struct {
	Name        string
	Map         string
	Key         string
	LuaFunction string `mapstructure:"lua_function"`
}

// RawDomain is the TOML-shaped form of a "[[domain]]" stanza.
type RawDomain struct {
	Name             string
	DBDir            string `mapstructure:"db_dir"`
	Maps             []string
	Auth             string
	HTTPAuthSchema   string `mapstructure:"http_authschema"`
	HTTPAuthToken    string `mapstructure:"http_authtoken"`
	HTTPAuthEncoding string `mapstructure:"http_authencoding"`
}

// Build assembles a Table from the raw TOML-decoded stanzas, validating
// the cross-references between domains, maps, and auth descriptors that a
// single-stanza struct tag cannot express.
func Build(rawDomains []RawDomain, rawMaps []RawMap, rawAuths []RawAuth, luaScript string) (*Table, error) {
	t := &Table{
		domains:   make(map[string]*Domain),
		maps:      make(map[string][]*Map),
		auths:     make(map[string]*Auth),
		LuaScript: luaScript,
	}

	for _, ra := range rawMaps {
		if ra.Name == "" {
			return nil, fmt.Errorf("map definition missing name")
		}
		mt := MapType(ra.Type)
		if !mt.Valid() {
			return nil, fmt.Errorf("map %q: invalid type %q", ra.Name, ra.Type)
		}
		keys := ra.Keys
		if len(keys) == 0 && ra.Key != "" {
			keys = []string{ra.Key}
		}
		if mt != MapScript && len(keys) == 0 {
			return nil, fmt.Errorf("map %q: at least one key is required", ra.Name)
		}
		if mt == MapScript && ra.LuaFunction == "" {
			return nil, fmt.Errorf("map %q: lua_function is required for scripted maps", ra.Name)
		}
		if mt != MapScript && ra.File == "" {
			return nil, fmt.Errorf("map %q: file is required", ra.Name)
		}
		m := &Map{
			Name:        ra.Name,
			Type:        mt,
			Format:      ra.Format,
			Keys:        keys,
			KeyAlias:    ra.KeyAlias,
			File:        ra.File,
			LuaFunction: ra.LuaFunction,
			Output:      ra.Output,
		}
		t.maps[ra.Name] = append(t.maps[ra.Name], m)
	}

	for _, raa := range rawAuths {
		if raa.Name == "" {
			return nil, fmt.Errorf("auth definition missing name")
		}
		if raa.LuaFunction == "" && (raa.Map == "" || raa.Key == "") {
			return nil, fmt.Errorf("auth %q: requires either lua_function or map+key", raa.Name)
		}
		if raa.LuaFunction != "" && (raa.Map != "" || raa.Key != "") {
			return nil, fmt.Errorf("auth %q: lua_function is mutually exclusive with map+key", raa.Name)
		}
		if raa.Map != "" {
			if _, ok := t.maps[raa.Map]; !ok {
				return nil, fmt.Errorf("auth %q: references unknown map %q", raa.Name, raa.Map)
			}
		}
		t.auths[raa.Name] = &Auth{
			Name:        raa.Name,
			Map:         raa.Map,
			Key:         raa.Key,
			LuaFunction: raa.LuaFunction,
		}
	}

	for _, rd := range rawDomains {
		if rd.Name == "" {
			return nil, fmt.Errorf("domain definition missing name")
		}
		if _, dup := t.domains[rd.Name]; dup {
			return nil, fmt.Errorf("duplicate domain %q", rd.Name)
		}
		for _, mapName := range rd.Maps {
			if _, ok := t.maps[mapName]; !ok {
				return nil, fmt.Errorf("domain %q: references unknown map %q", rd.Name, mapName)
			}
		}
		if rd.Auth != "" {
			if _, ok := t.auths[rd.Auth]; !ok {
				return nil, fmt.Errorf("domain %q: references unknown auth %q", rd.Name, rd.Auth)
			}
		}
		t.domains[rd.Name] = &Domain{
			Name:             rd.Name,
			DBDir:            rd.DBDir,
			Maps:             rd.Maps,
			AuthName:         rd.Auth,
			HTTPAuthSchema:   rd.HTTPAuthSchema,
			HTTPAuthToken:    rd.HTTPAuthToken,
			HTTPAuthEncoding: rd.HTTPAuthEncoding,
		}
	}

	return t, nil
}

// Domain returns the named domain, or false if absent (spec.md §4.2 "Map
// lookup algorithm" step 1: "Look up domain; fail 404 Not found if
// absent").
func (t *Table) Domain(name string) (*Domain, bool) {
	d, ok := t.domains[name]
	return d, ok
}

// Auth returns the named auth descriptor, or false if absent.
func (t *Table) Auth(name string) (*Auth, bool) {
	a, ok := t.auths[name]
	return a, ok
}

// ResolveMap implements the map-selection half of spec.md §4.2's lookup
// algorithm (steps 3-4): given a logical map name and an incoming key
// name, it returns the first Map instance registered under that name whose
// keys (directly or via alias) contain the key, along with the resolved
// canonical key name.
func (t *Table) ResolveMap(mapName, key string) (*Map, string, bool) {
	for _, m := range t.maps[mapName] {
		if canon, ok := m.CanonicalKey(key); ok {
			return m, canon, true
		}
	}
	return nil, "", false
}

// MapsNamed returns every Map instance registered under a logical map
// name, for the server's /info endpoint (spec.md §4.2 "map lookup" info
// route listing allowed maps and their accepted keys).
func (t *Table) MapsNamed(mapName string) []*Map {
	return t.maps[mapName]
}
