package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPort(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{"Output 3", RoleOutput},
		{"CV Input", RoleInput},
		{"Thru", RoleOutput},
		{"Left/mono", RoleOutput},
		{"Left output", RoleOutput},
		{"Right", RoleOutput},
		{"Right gate", RoleOutput},
		{"Input/output mix", RoleInput},
		{"Clock out", RoleOutput},
		{"Gate in", RoleInput},
		{"Main", RoleInput},
		{"  AUDIO   INPUT ", RoleInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPort(tt.name))
		})
	}
}

func TestPortRulesOrder(t *testing.T) {
	var names []string
	for _, r := range PortRules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"contains input",
		"contains output",
		"left channel",
		"right channel",
		"left/mono",
		"contains out",
		"contains in",
	}, names)
}

func TestIsRoutingName(t *testing.T) {
	assert.True(t, IsRoutingName("Formant input"))
	assert.True(t, IsRoutingName("OUTPUT"))
	assert.False(t, IsRoutingName("Gate in"))
	assert.False(t, IsRoutingName("Thru"))
}
