// Package cli defines the obfs2relay command tree, built with kong.
package cli

import "github.com/alecthomas/kong"

// CLI is the top-level command tree.
type CLI struct {
	Run            Run              `kong:"cmd,help='Run the relay.'"`
	GenerateSecret GenerateSecret   `kong:"cmd,help='Generate a new user secret.'"`
	Access         Access           `kong:"cmd,help='Print a tg://proxy access link for a configured user.'"`
	Health         Health           `kong:"cmd,help='Check relay health via its Prometheus endpoint.'"`
	Version        kong.VersionFlag `kong:"help='Print version.',short='v'"`
}
