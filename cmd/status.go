package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/urfave/cli"

	"github.com/stkaddons/addonmgr/internal/config"
	"github.com/stkaddons/addonmgr/pkg/addonlib"
)

func status(ctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 2)
	}
	if addonsDir != "" {
		cfg.AddonsDir = addonsDir
	}

	store, err := addonlib.OpenStore(filepath.Join(cfg.AddonsDir, addonlib.StoreFileName))
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}
	defer store.Close()
	installed, err := store.Load()
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}
	if len(installed) == 0 {
		fmt.Println("No addons installed.")
		return nil
	}

	records := make([]addonlib.InstalledEntry, 0, len(installed))
	var total int64
	for _, rec := range installed {
		records = append(records, rec)
		total += rec.Size
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Category != records[j].Category {
			return records[i].Category < records[j].Category
		}
		return records[i].ID < records[j].ID
	})

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tREVISION\tSIZE\tUPDATED")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.ID, rec.Category, rec.Revision,
			addonlib.ByteSize(rec.Size),
			rec.UpdatedAt.Format("2006-01-02"),
		)
	}
	w.Flush()
	fmt.Printf("\n%d addons installed, %s on disk.\n", len(records), addonlib.ByteSize(total))
	return nil
}
