package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	in := "RWY 11L/29R CLSD DUE WIP"
	out := Expand(in)
	assert.Equal(t, "runway 11L/29R closed DUE work in progress", out)
}

func TestExpand_PreservesPunctuation(t *testing.T) {
	assert.Equal(t, "taxiway B closed.", Expand("TWY B CLSD."))
}

func TestExpand_Empty(t *testing.T) {
	assert.Equal(t, "", Expand(""))
}

func TestExpand_UnknownTokensUntouched(t *testing.T) {
	assert.Equal(t, "OIIX A0001/26 unserviceable", Expand("OIIX A0001/26 U/S"))
}
