package cli

import (
	"fmt"
	"net/url"

	"github.com/obfs2relay/obfs2relay/internal/config"
)

// Access prints a tg://proxy link for one configured user. It only formats
// the URL: unlike a full health-probing "access" command, it does not dial
// out to verify the secret actually works against a running relay.
type Access struct {
	ConfigPath string `kong:"arg,required,type='existingfile',help='Path to the JSON config file.',name='config-path'"` //nolint: lll
	Host       string `kong:"arg,required,help='Public hostname or IP clients should connect to.'"`
	User       string `kong:"arg,required,help='Configured user name to print a link for.'"`
	Port       int    `kong:"help='Public port to put in the link; the bindTo port is not consulted.',default='443'"`
}

func (a Access) Run(cli *CLI) error {
	conf, err := config.Read(a.ConfigPath)
	if err != nil {
		return fmt.Errorf("cannot read config: %w", err)
	}

	for _, u := range conf.Users {
		if u.Name != a.User {
			continue
		}

		link := url.URL{
			Scheme: "tg",
			Host:   "proxy",
		}

		q := url.Values{}
		q.Set("server", a.Host)
		q.Set("port", fmt.Sprintf("%d", a.Port))
		q.Set("secret", u.Secret)
		link.RawQuery = q.Encode()

		fmt.Println(link.String())

		return nil
	}

	return fmt.Errorf("no such user: %s", a.User)
}
