package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestOptionalMutex(t *testing.T) {
	var unused OptionalMutex
	unused.Lock()
	unused.Lock()
	unused.Unlock()
	unused.Unlock()

	used := OptionalMutex{UseMutex: true}
	var counter int
	var group errgroup.Group
	for i := 0; i < 4; i++ {
		group.Go(func() error {
			for j := 0; j < 1000; j++ {
				used.Lock()
				counter++
				used.Unlock()
			}
			return nil
		})
	}

	require.NoError(t, group.Wait())
	require.Equal(t, 4000, counter)
}
