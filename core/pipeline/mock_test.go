package pipeline

import (
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jnicholls/banking-exercise/core/account"
)

// MockAccountSink is a hand-written gomock-style fake, used where a test
// needs to assert *how* the sink was called rather than just record its
// argument (e.g. that Write is invoked exactly once, and that a sink
// failure propagates as a pipeline error).
type MockAccountSink struct {
	ctrl     *gomock.Controller
	recorder *MockAccountSinkRecorder
}

type MockAccountSinkRecorder struct {
	mock *MockAccountSink
}

func NewMockAccountSink(ctrl *gomock.Controller) *MockAccountSink {
	m := &MockAccountSink{ctrl: ctrl}
	m.recorder = &MockAccountSinkRecorder{m}
	return m
}

func (m *MockAccountSink) EXPECT() *MockAccountSinkRecorder {
	return m.recorder
}

func (m *MockAccountSink) Write(accounts []*account.Account) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Write", accounts)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockAccountSinkRecorder) Write(accounts interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	mt := reflect.TypeOf((*MockAccountSink)(nil).Write)
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Write", mt, accounts)
}

func TestPipelinePropagatesSinkFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	sink := NewMockAccountSink(ctrl)
	sink.EXPECT().Write(gomock.Any()).Return(io.ErrShortWrite)

	src := &sliceSource{rows: []RawRecord{
		row("deposit", "1", "1", "10.0"),
	}}

	p := New(Config{Source: src, Sink: sink, NumWorkers: 1})
	err := p.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, io.ErrShortWrite)
}
