package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"ingest", "query", "ask", "tenant", "doc", "handlers"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestTenantCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range tenantCmd.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["create"])
	assert.True(t, names["list"])
	assert.True(t, names["stats"])
}

func TestMimeForFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", chunker.MIMEPDF},
		{"notes.DOCX", chunker.MIMEDocx},
		{"data.csv", chunker.MIMECSV},
		{"sheet.xlsx", chunker.MIMEXLSX},
		{"legacy.xls", chunker.MIMEXLS},
		{"readme.txt", chunker.MIMEText},
		{"no_extension", chunker.MIMEText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mimeForFile(tt.path), tt.path)
	}
}
