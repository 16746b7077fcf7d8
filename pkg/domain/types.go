// Package domain holds the immutable Domain/Map/Auth descriptor types
// built once from configuration at startup (spec.md §3 "Data model",
// "Lifecycle") and the table that resolves lookups against them.
package domain

// MapType names the backend dispatch tag for a Map (spec.md §3 "Map").
type MapType string

const (
	MapGDBM   MapType = "gdbm"
	MapJSON   MapType = "json"
	MapScript MapType = "lua"
)

// Valid reports whether t is a recognized map type.
func (t MapType) Valid() bool {
	switch t {
	case MapGDBM, MapJSON, MapScript:
		return true
	}
	return false
}

// Map is a named, typed lookup container. A single logical map name may be
// defined by multiple Map instances differing in accepted keys (spec.md §3
// "A single logical map name may be defined by multiple Map instances").
type Map struct {
	Name string
	Type MapType

	// Format is only applied to MapGDBM lines; MapJSON and MapScript
	// records are returned as decoded objects and Format is not applied.
	Format string

	// Keys is the ordered, non-empty set of key names this instance
	// answers on.
	Keys []string

	// KeyAlias maps an incoming key name to its canonical key name.
	KeyAlias map[string]string

	// File is the backend file path for MapGDBM/MapJSON. LuaFunction is
	// the handler name for MapScript. Exactly one is set.
	File        string
	LuaFunction string

	// Output maps an output field name to a template string, used by the
	// key-value and separator formats (pkg/format).
	Output map[string]string
}

// CanonicalKey resolves an incoming key name to its canonical form and
// reports whether this Map instance answers on it at all.
func (m *Map) CanonicalKey(key string) (string, bool) {
	for _, k := range m.Keys {
		if k == key {
			return k, true
		}
	}
	if canon, ok := m.KeyAlias[key]; ok {
		for _, k := range m.Keys {
			if k == canon {
				return canon, true
			}
		}
	}
	return "", false
}

// Auth describes how to verify a password for a domain. Either Map+Key
// (ordinary, map-backed auth) or LuaFunction (scripted auth) is set.
type Auth struct {
	Name string

	Map string
	Key string

	LuaFunction string
}

// Scripted reports whether this Auth descriptor dispatches to Lua.
func (a *Auth) Scripted() bool {
	return a.LuaFunction != ""
}

// Domain is a named namespace scoping which maps are available and how the
// server authenticates the daemon (spec.md §3 "Domain").
type Domain struct {
	Name  string
	DBDir string

	// Maps is the whitelist of logical map names reachable in this
	// domain.
	Maps []string

	// AuthName names the Auth descriptor used for this domain's /auth
	// endpoint, empty if the domain has none configured.
	AuthName string

	// HTTPAuthSchema/HTTPAuthToken/HTTPAuthEncoding are the credential
	// schema the daemon must present to reach this domain (spec.md §4.2
	// "HTTP auth").
	HTTPAuthSchema   string
	HTTPAuthToken    string
	HTTPAuthEncoding string
}

// AllowsMap reports whether mapName is in this domain's whitelist.
func (d *Domain) AllowsMap(mapName string) bool {
	for _, m := range d.Maps {
		if m == mapName {
			return true
		}
	}
	return false
}
