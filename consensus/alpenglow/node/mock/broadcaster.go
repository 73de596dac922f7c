package mock

import (
	"github.com/stretchr/testify/mock"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

// Broadcaster is a mock of node.Broadcaster.
type Broadcaster struct {
	mock.Mock
}

func (b *Broadcaster) BroadcastCertificate(from model.ValidatorID, cert model.Certificate) {
	b.Called(from, cert)
}

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// NewBroadcaster returns a Broadcaster whose expectations are asserted when
// the test finishes.
func NewBroadcaster(t testingT) *Broadcaster {
	b := &Broadcaster{}
	b.Mock.Test(t)
	t.Cleanup(func() { b.AssertExpectations(t) })
	return b
}
