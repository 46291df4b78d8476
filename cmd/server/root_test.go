package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "indexes", "audit"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
