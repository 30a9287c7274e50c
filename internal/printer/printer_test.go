package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/errors"
)

func TestSubmitWritesJob(t *testing.T) {
	sink := NewMockSink()
	p := NewPrinter(sink, time.Millisecond)

	data := []byte{0x1B, 0x40, 'H', 'I'}
	require.NoError(t, p.Submit("OFF000001", data))

	jobs := sink.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, data, jobs[0])
	assert.NoError(t, p.LastError())
	assert.Equal(t, int64(1), p.JobCount())
}

// Busy类错误等待后重试一次
func TestSubmitRetriesOnceOnBusy(t *testing.T) {
	sink := NewMockSink()
	sink.FailWith(errors.New(errors.ErrPrinterBusy, "busy"))
	p := NewPrinter(sink, time.Millisecond)

	require.NoError(t, p.Submit("OFF000001", []byte("job")))
	assert.Len(t, sink.Jobs(), 1)
}

func TestSubmitBusyTwiceFails(t *testing.T) {
	sink := NewMockSink()
	sink.FailWith(
		errors.New(errors.ErrPrinterBusy, "busy"),
		errors.New(errors.ErrPrinterBusy, "busy"),
	)
	p := NewPrinter(sink, time.Millisecond)

	err := p.Submit("OFF000001", []byte("job"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrPrinterBusy, errors.GetCode(err))
	assert.Empty(t, sink.Jobs())
}

// 非瞬时错误不重试，原样上抛
func TestSubmitDoesNotRetryHardErrors(t *testing.T) {
	sink := NewMockSink()
	sink.FailWith(errors.New(errors.ErrPrinterOutOfPaper, "out of paper"))
	p := NewPrinter(sink, time.Millisecond)

	err := p.Submit("OFF000001", []byte("job"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrPrinterOutOfPaper, errors.GetCode(err))
	assert.Empty(t, sink.Jobs())
	assert.Error(t, p.LastError())
}

func TestSubmitSerializesJobs(t *testing.T) {
	sink := NewMockSink()
	p := NewPrinter(sink, time.Millisecond)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = p.Submit("OFF000001", []byte("job"))
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Len(t, sink.Jobs(), 10)
	assert.Equal(t, int64(10), p.JobCount())
}

// 设备不存在映射为打印机离线
func TestSpoolSinkMissingDevice(t *testing.T) {
	sink := NewSpoolSink("/nonexistent/lp0")

	err := sink.Write([]byte("job"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrPrinterOffline, errors.GetCode(err))
}

func TestSerialSinkMissingPort(t *testing.T) {
	sink := NewSerialSink("/nonexistent/ttyUSB9", 9600)

	err := sink.Write([]byte("job"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrPrinterOffline, errors.GetCode(err))
}
