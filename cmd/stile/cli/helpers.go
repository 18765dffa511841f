package cli

import (
	"os"

	"github.com/spf13/viper"

	"github.com/stilehq/stile/internal/store"
)

// openStore opens the configured database. Flags win over config file
// values; the default is the embedded SQLite store under ~/.stile.
func openStore() (*store.Store, error) {
	driver := viper.GetString("store.driver")
	if driver == "" || driver == "sqlite" {
		dir := dataDir
		if dir == "" {
			dir = viper.GetString("store.data_dir")
		}
		if dir == "" {
			home, _ := os.UserHomeDir()
			dir = home + "/.stile"
		}
		return store.Open("sqlite", dir)
	}
	return store.Open(driver, viper.GetString("store.dsn"))
}
