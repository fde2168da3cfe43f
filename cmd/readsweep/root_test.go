package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRootFlags(t *testing.T) {
	flag := rootCmd.PersistentFlags().ShorthandLookup("D")
	if flag == nil || flag.Name != "db" {
		t.Fatalf("shorthand -D = %v, want --db", flag)
	}
	if flag.DefValue == "" {
		t.Error("--db has no default directory")
	}
	if !strings.HasSuffix(flag.DefValue, filepath.Join(".readsweep", "db")) {
		t.Errorf("--db default = %q, want a .readsweep/db path", flag.DefValue)
	}

	for shorthand, name := range map[string]string{
		"o": "out1",
		"O": "out2",
		"t": "threads",
		"l": "kraken2-log",
		"f": "force",
	} {
		flag := rootCmd.Flags().ShorthandLookup(shorthand)
		if flag == nil || flag.Name != name {
			t.Errorf("shorthand -%s = %v, want --%s", shorthand, flag, name)
		}
	}
}
