// SPDX-License-Identifier: GPL-2.0-or-later

package host

import (
	"bufio"
	"io"
)

// ReadConsole returns the lines of r as they are typed. The channel is
// closed at the end of the input.
func ReadConsole(r io.Reader) <-chan string {
	lines := make(chan string, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
