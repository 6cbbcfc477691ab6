package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Seed the default service catalog so a fresh install can issue tickets
// without admin setup.
func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("service_types")
		if err != nil {
			return err
		}

		defaults := []struct {
			name    string
			minutes int
		}{
			{"General service", 10},
			{"Document registration", 20},
			{"Certificate pickup", 5},
		}

		for _, d := range defaults {
			record := core.NewRecord(collection)
			record.Set("name", d.name)
			record.Set("expected_minutes", d.minutes)
			record.Set("active", true)
			if err := app.Save(record); err != nil {
				return err
			}
		}

		return nil
	}, func(app core.App) error {
		records, err := app.FindAllRecords("service_types")
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := app.Delete(record); err != nil {
				return err
			}
		}
		return nil
	})
}
