package workflow

// HumanActionListener is the callback surface a workflow uses to ask a
// human to act: place finger, remove finger, and (only emitted by the
// data-returning enrol variant) wait while data is transferring.
type HumanActionListener interface {
	PutFinger()
	RemoveFinger()
	WaitWhileDataTransferring()
}

// FuncListener adapts three plain functions into a HumanActionListener.
// A nil field is a no-op.
type FuncListener struct {
	OnPutFinger                 func()
	OnRemoveFinger              func()
	OnWaitWhileDataTransferring func()
}

func (f FuncListener) PutFinger() {
	if f.OnPutFinger != nil {
		f.OnPutFinger()
	}
}

func (f FuncListener) RemoveFinger() {
	if f.OnRemoveFinger != nil {
		f.OnRemoveFinger()
	}
}

func (f FuncListener) WaitWhileDataTransferring() {
	if f.OnWaitWhileDataTransferring != nil {
		f.OnWaitWhileDataTransferring()
	}
}

var _ HumanActionListener = FuncListener{}
