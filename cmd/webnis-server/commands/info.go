package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miquels/webnis/internal/cliutil"
	"github.com/miquels/webnis/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display the domains, maps and auths a configuration would serve",
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := ConfigFile()
	if path == "" {
		path = defaultServerConfigPath
	}

	var cfg config.ServerConfig
	if err := config.Load(path, &cfg); err != nil {
		return err
	}

	domains := cliutil.NewStringTable("DOMAIN", "MAPS", "AUTH", "HTTP AUTH")
	for _, d := range cfg.Domains {
		auth := d.HTTPAuthSchema
		if auth == "" {
			auth = "-"
		}
		domains.AddRow(d.Name, strings.Join(d.Maps, ","), d.Auth, auth)
	}
	fmt.Println("Domains:")
	cliutil.PrintTable(os.Stdout, domains)

	maps := cliutil.NewStringTable("MAP", "TYPE", "FORMAT", "FILE/SCRIPT")
	for _, m := range cfg.Maps {
		src := m.File
		if src == "" {
			src = m.LuaFunction
		}
		maps.AddRow(m.Name, m.Type, m.Format, src)
	}
	fmt.Println("\nMaps:")
	cliutil.PrintTable(os.Stdout, maps)

	auths := cliutil.NewStringTable("AUTH", "MAP", "KEY")
	for _, a := range cfg.Auths {
		auths.AddRow(a.Name, a.Map, a.Key)
	}
	fmt.Println("\nAuths:")
	cliutil.PrintTable(os.Stdout, auths)

	return nil
}
