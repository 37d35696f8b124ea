package aws

import (
	"github.com/yairfalse/autotag/internal/credentials"
	"github.com/yairfalse/autotag/internal/plugin"
)

// NewStrategies returns one strategy per category, all sharing clients.
// home is the region used for calls that are not tied to a resource region.
func NewStrategies(clients Clients, home string) *plugin.Set {
	// categories are distinct, so NewSet cannot fail here
	set, _ := plugin.NewSet(
		&computeStrategy{clients: clients},
		&databaseStrategy{clients: clients},
		&cacheStrategy{clients: clients},
		&cdnStrategy{clients: clients},
		&storageStrategy{clients: clients, home: home},
	)
	return set
}

// StrategyFactory binds the AWS strategies to one operation's scoped credentials.
func StrategyFactory(home string) func(creds credentials.Credentials) *plugin.Set {
	return func(creds credentials.Credentials) *plugin.Set {
		return NewStrategies(NewClients(creds, home), home)
	}
}
