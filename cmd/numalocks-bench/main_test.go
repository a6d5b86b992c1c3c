package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenariosPass(t *testing.T) {
	for _, name := range scenarioOrder {
		name := name
		t.Run(name, func(t *testing.T) {
			assert.True(t, scenarios[name](), "scenario %q should pass", name)
		})
	}
}
