// SPDX-License-Identifier: GPL-2.0-or-later

package conlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSinks(t *testing.T) {
	var out, safe string
	SetPrintf(func(f string, a ...any) { out += fmt.Sprintf(f, a...) })
	SetSafePrintf(func(f string, a ...any) { safe += fmt.Sprintf(f, a...) })
	defer SetPrintf(nil)
	defer SetSafePrintf(nil)

	Printf("hello %s\n", "world")
	SafePrintf("%d edicts\n", 3)
	assert.Equal(t, "hello world\n", out)
	assert.Equal(t, "3 edicts\n", safe)
}

func TestDPrintf(t *testing.T) {
	var out string
	SetPrintf(func(f string, a ...any) { out += fmt.Sprintf(f, a...) })
	defer SetPrintf(nil)
	defer SetDeveloper(false)

	DPrintf("hidden\n")
	assert.Empty(t, out)
	SetDeveloper(true)
	DPrintf("shown\n")
	assert.Equal(t, "shown\n", out)
}
