package livelog

import (
	"fmt"
	"sync"

	rice "github.com/GeertJohan/go.rice"
)

// The page templates live in ./templates. During development they are read
// from disk next to this source file; for standalone binaries run
// `rice embed-go` in this directory before building.
var (
	boxOnce sync.Once
	box     *rice.Box
	boxErr  error
)

func templateBox() (*rice.Box, error) {
	boxOnce.Do(func() {
		box, boxErr = rice.FindBox("templates")
	})
	return box, boxErr
}

func mustTemplate(name string) string {
	b, err := templateBox()
	if err != nil {
		panic(fmt.Sprintf("livelog: opening templates box: %v", err))
	}
	return b.MustString(name)
}
