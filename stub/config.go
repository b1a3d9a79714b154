package stub

import (
	"errors"
	"fmt"

	"github.com/thisisjab/docquery/query"
)

type CORSConfig struct {
	TrustedOrigins []string `yaml:"trusted_origins"`
}

// Fixture is the canned answer for one (collection, action) pair.
// A non-empty Error is sent as `{"error": Error}` instead of Result.
type Fixture struct {
	Collection string `yaml:"collection"`
	Action     string `yaml:"action"`
	Result     any    `yaml:"result"`
	Error      string `yaml:"error"`
}

type Config struct {
	Addr     string     `yaml:"addr"`
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	Token    string     `yaml:"token"`
	CORS     CORSConfig `yaml:"cors"`
	Fixtures []Fixture  `yaml:"fixtures"`
}

var actions = map[string]bool{
	string(query.ActionDelete):     true,
	string(query.ActionCount):      true,
	string(query.ActionExists):     true,
	string(query.ActionList):       true,
	string(query.ActionFetch):      true,
	string(query.ActionFetchFirst): true,
	string(query.ActionUpdate):     true,
	actionInsert:                   true,
	actionInsertMany:               true,
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("stub server address is required")
	}

	seen := make(map[fixtureKey]bool, len(c.Fixtures))
	for i, f := range c.Fixtures {
		if f.Collection == "" {
			return fmt.Errorf("fixture %d: collection is required", i)
		}
		if !actions[f.Action] {
			return fmt.Errorf("fixture %d: unknown action %q", i, f.Action)
		}

		key := fixtureKey{f.Collection, f.Action}
		if seen[key] {
			return fmt.Errorf("fixture %d: duplicate fixture for %s/%s", i, f.Collection, f.Action)
		}
		seen[key] = true
	}

	return nil
}
