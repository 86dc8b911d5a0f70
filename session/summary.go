package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/tangkong/hutch-python/device"
)

// WriteSummary writes the db.txt file: one line per session object with
// its class and doc line, so users can grep what loaded without
// starting a session.
func WriteSummary(path string, registry *device.Registry) error {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "name\tclass\tdescription")
	for _, name := range registry.Names() {
		obj, _ := registry.Get(name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, obj.ClassName(), registry.Doc(name))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
