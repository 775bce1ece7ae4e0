package workflow

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/fpm10-driver/pkg/fpm10"
)

func TestEnrollCommandSequence(t *testing.T) {
	responses := [][]byte{
		ackOK(),                 // GetImage -> present
		ackOK(),                 // Image2Tz(buf1)
		ackCode(0x02),           // GetImage -> no finger (removed)
		ackOK(),                 // GetImage -> present
		ackOK(),                 // Image2Tz(buf2)
		ackCode(0x02),           // GetImage -> no finger (removed)
		ackOK(),                 // CreateModel
		ackOK(),                 // Store
	}
	e, port := engineWithResponses(responses...)
	e.cfg.EnrollSettleSleep = false

	listener := &countingListener{}
	require.NoError(t, e.Enroll(5, listener))

	require.Equal(t, 8, port.writeCount())
	wantOpcodes := []byte{opGetImage, opImage2Tz, opGetImage, opGetImage, opImage2Tz, opGetImage, opCreateModel, opStore}
	for i, want := range wantOpcodes {
		assert.Equal(t, want, port.opcodeAt(i), "write %d", i)
	}

	assert.Equal(t, []string{"put", "remove", "put", "remove"}, listener.snapshot())
}

func TestEnrollPropagatesCaptureFailure(t *testing.T) {
	responses := [][]byte{
		ackCode(0x03), // GetImage -> image capture failed, a real error
	}
	e, _ := engineWithResponses(responses...)
	e.cfg.EnrollSettleSleep = false

	err := e.Enroll(0, &countingListener{})
	require.Error(t, err)
	var se *fpm10.SensorError
	require.ErrorAs(t, err, &se)
}

// Two submitted async workflows must serialize against the same
// sensor: the session mutex permits only one in flight.
func TestAsyncWorkflowsSerialize(t *testing.T) {
	oneEnroll := func() [][]byte {
		return [][]byte{
			ackOK(),       // GetImage -> present
			ackOK(),       // Image2Tz(buf1)
			ackCode(0x02), // GetImage -> no finger (removed)
			ackOK(),       // GetImage -> present
			ackOK(),       // Image2Tz(buf2)
			ackCode(0x02), // GetImage -> no finger (removed)
			ackOK(),       // CreateModel
			ackOK(),       // Store
		}
	}
	responses := append(oneEnroll(), oneEnroll()...)
	e, _ := engineWithResponses(responses...)
	e.cfg.EnrollSettleSleep = false

	var running int32
	var sawOverlap int32
	trackingListener := func() HumanActionListener {
		return FuncListener{
			OnPutFinger: func() {
				if atomic.AddInt32(&running, 1) > 1 {
					atomic.StoreInt32(&sawOverlap, 1)
				}
			},
			OnRemoveFinger: func() {
				atomic.AddInt32(&running, -1)
			},
		}
	}

	a1 := e.EnrollAsync(1, trackingListener())
	a2 := e.EnrollAsync(2, trackingListener())

	_, err1 := a1.Wait()
	_, err2 := a2.Wait()
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, int32(0), atomic.LoadInt32(&sawOverlap))
}

// A cancellation requested before the first poll is observed at the
// very next polling boundary, without ever touching the sensor.
func TestCancelStopsWaitForFingerprint(t *testing.T) {
	e, port := engineWithResponses()

	cancel := NewActivity[struct{}]()
	cancel.Cancel()

	err := e.waitForFingerprint(cancel)
	require.ErrorIs(t, err, fpm10.ErrCancelled)
	assert.Equal(t, 0, port.writeCount())
}

func TestTemplateCountAndLibraryManagement(t *testing.T) {
	responses := [][]byte{
		templateCountAck(7), // TemplateCount -> 7
		ackOK(),             // EmptyLibrary
		ackOK(),             // DeleteModel
	}
	e, _ := engineWithResponses(responses...)

	count, err := e.TemplateCount()
	require.NoError(t, err)
	assert.Equal(t, uint16(7), count)

	require.NoError(t, e.EmptyLibrary())
	require.NoError(t, e.DeleteModel(3))
}
