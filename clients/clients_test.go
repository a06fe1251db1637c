package clients

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeprecateClosesOutstandingChannels(t *testing.T) {
	var bc BaseClient
	bc.AddTemplateToDeprecate("a")
	bc.AddTemplateToDeprecate("b")
	chA := bc.GetDeprecationChannel("a")
	chB := bc.GetDeprecationChannel("b")
	require.NotNil(t, chA)
	require.NotNil(t, chB)

	called := make(chan string, 1)
	bc.SetStaleTemplateCall(func(reason string) { called <- reason })

	bc.DeprecateOutstandingTemplates("reconnect")

	select {
	case <-chA:
	default:
		t.Fatal("channel a not closed")
	}
	select {
	case <-chB:
	default:
		t.Fatal("channel b not closed")
	}
	assert.Equal(t, "reconnect", <-called)
	assert.Nil(t, bc.GetDeprecationChannel("a"))
}

//TestDeprecationConcurrentAccess drives the map from an inbound-path
// goroutine and a reconnecting supervisor at once, the way a live client
// does
func TestDeprecationConcurrentAccess(t *testing.T) {
	var bc BaseClient
	bc.SetStaleTemplateCall(func(string) {})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			bc.AddTemplateToDeprecate(fmt.Sprintf("tmpl-%d", i))
			bc.GetDeprecationChannel(fmt.Sprintf("tmpl-%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			bc.DeprecateOutstandingTemplates("reconnect")
		}
	}()
	wg.Wait()

	// Whatever survived the final races is still a consistent map.
	bc.DeprecateOutstandingTemplates("shutdown")
	assert.Nil(t, bc.GetDeprecationChannel("tmpl-0"))
}
