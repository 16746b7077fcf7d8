package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/miquels/webnis/internal/cliutil"
)

var initOutputPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively bootstrap a webnis-server configuration file",
	Long: `init walks through the first [[domain]] stanza and its passwd map,
then writes a starter TOML configuration file.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initOutputPath, "output", defaultServerConfigPath, "path to write the new configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initOutputPath); err == nil {
		overwrite, err := cliutil.PromptConfirm(fmt.Sprintf("%s already exists, overwrite", initOutputPath), false)
		if err != nil {
			return err
		}
		if !overwrite {
			return fmt.Errorf("aborted: %s already exists", initOutputPath)
		}
	}

	domainName, err := cliutil.PromptInput("Domain name", "default")
	if err != nil {
		return err
	}
	dbDir, err := cliutil.PromptInput("Map database directory", "/var/db/webnis/"+domainName)
	if err != nil {
		return err
	}
	authToken, err := cliutil.PromptRequired("Bind auth token (shared secret presented by webnis-bind)")
	if err != nil {
		return err
	}
	listenAddr, err := cliutil.PromptInput("Listen address", "0.0.0.0:3389")
	if err != nil {
		return err
	}
	useTLS, err := cliutil.PromptConfirm("Enable TLS", true)
	if err != nil {
		return err
	}

	var tlsLines string
	if useTLS {
		crtFile, err := cliutil.PromptInput("TLS certificate file", "/etc/webnis/server.crt")
		if err != nil {
			return err
		}
		keyFile, err := cliutil.PromptInput("TLS key file", "/etc/webnis/server.key")
		if err != nil {
			return err
		}
		tlsLines = fmt.Sprintf("crt_file = %q\nkey_file = %q\n", crtFile, keyFile)
	}

	out := fmt.Sprintf(`[logging]
level = "INFO"
format = "text"
output = "stderr"

[server]
tls = %t
%slisten = [%q]
concurrency = 32

[[domain]]
name = %q
db_dir = %q
maps = ["passwd"]
auth = %q
http_authschema = "Bearer"
http_authtoken = %q

[[map]]
name = "passwd"
type = "gdbm"
format = "passwd"
keys = ["username"]
file = %q

[[auth]]
name = %q
map = "passwd"
key = "username"
`, useTLS, tlsLines, listenAddr, domainName, dbDir, domainName, authToken, dbDir+"/passwd.by.name", domainName)

	if err := os.WriteFile(initOutputPath, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", initOutputPath, err)
	}

	fmt.Printf("wrote %s\n", initOutputPath)
	return nil
}
