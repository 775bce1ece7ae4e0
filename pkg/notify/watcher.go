package notify

import (
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/librescoot/fpm10-driver/pkg/fpm10"
	"github.com/librescoot/fpm10-driver/pkg/workflow"
)

// cancelable is satisfied by every *workflow.Activity[T] regardless of
// T, letting Watcher hold a reference to whichever workflow is
// currently in flight without naming its result type.
type cancelable interface {
	Cancel()
}

// Watcher drains commands from a Redis list and drives a
// workflow.Engine, publishing lifecycle events for each workflow it
// runs.
type Watcher struct {
	client *Client
	engine *workflow.Engine

	mu      sync.Mutex
	current cancelable
}

// NewWatcher builds a Watcher around an already-open Client and Engine.
func NewWatcher(client *Client, engine *workflow.Engine) *Watcher {
	return &Watcher{client: client, engine: engine}
}

// Run drains KeyCommandList until stop is closed.
func (w *Watcher) Run(stop <-chan struct{}) {
	log.Printf("watching command list %s", KeyCommandList)
	for {
		select {
		case <-stop:
			log.Println("stopping command watcher")
			return
		default:
		}

		result, err := w.client.BRPop(time.Second, KeyCommandList)
		if err != nil {
			log.Printf("error receiving command: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if result == nil {
			continue
		}
		w.dispatch(result[1])
	}
}

func (w *Watcher) setCurrent(c cancelable) {
	w.mu.Lock()
	w.current = c
	w.mu.Unlock()
}

func (w *Watcher) clearCurrent() {
	w.mu.Lock()
	w.current = nil
	w.mu.Unlock()
}

func (w *Watcher) dispatch(cmd string) {
	if cmd == "cancel" {
		w.mu.Lock()
		cur := w.current
		w.mu.Unlock()
		if cur != nil {
			cur.Cancel()
		} else {
			log.Println("cancel received with no workflow in flight")
		}
		return
	}

	parts := strings.Split(cmd, ":")
	op := parts[0]

	switch op {
	case "enroll":
		slot, ok := arg16(parts, 1)
		if !ok {
			log.Printf("malformed command %q", cmd)
			return
		}
		go w.runEnroll(slot)
	case "search":
		go w.runSearch()
	case "match":
		slot, ok := arg16(parts, 1)
		if !ok {
			log.Printf("malformed command %q", cmd)
			return
		}
		go w.runMatch(slot)
	case "download-image":
		go w.runDownloadImage()
	case "delete":
		slot, ok := arg16(parts, 1)
		if !ok {
			log.Printf("malformed command %q", cmd)
			return
		}
		go w.runDelete(slot)
	case "empty-library":
		go w.runEmptyLibrary()
	case "template-count":
		go w.runTemplateCount()
	default:
		log.Printf("unknown command %q", cmd)
	}
}

func arg16(parts []string, i int) (uint16, bool) {
	if i >= len(parts) {
		return 0, false
	}
	v, err := strconv.ParseUint(parts[i], 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

func (w *Watcher) publish(ev Event) {
	if err := w.client.publishEvent(ev); err != nil {
		log.Printf("failed to publish %s event: %v", ev.Workflow, err)
	}
}

func (w *Watcher) listenerFor(name string, slot uint16) workflow.HumanActionListener {
	return workflow.FuncListener{
		OnPutFinger: func() {
			w.publish(Event{Workflow: name, Phase: PhasePutFinger, Slot: slot})
		},
		OnRemoveFinger: func() {
			w.publish(Event{Workflow: name, Phase: PhaseRemoveFinger, Slot: slot})
		},
		OnWaitWhileDataTransferring: func() {
			w.publish(Event{Workflow: name, Phase: PhaseTransferring, Slot: slot})
		},
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (w *Watcher) runEnroll(slot uint16) {
	const name = "enroll"
	w.publish(Event{Workflow: name, Phase: PhaseStarted, Slot: slot})

	act := w.engine.EnrollAsync(slot, w.listenerFor(name, slot))
	w.setCurrent(act)
	_, err := act.Wait()
	w.clearCurrent()

	w.publish(completionEvent(name, slot, err))
}

func (w *Watcher) runSearch() {
	const name = "search"
	w.publish(Event{Workflow: name, Phase: PhaseStarted})

	act := w.engine.SearchAsync(w.listenerFor(name, 0))
	w.setCurrent(act)
	result, err := act.Wait()
	w.clearCurrent()

	ev := completionEvent(name, 0, err)
	if err == nil && result != nil {
		ev.MatchID = result.ID
		ev.Score = int(result.Score)
	}
	w.publish(ev)
}

func (w *Watcher) runMatch(slot uint16) {
	const name = "match"
	w.publish(Event{Workflow: name, Phase: PhaseStarted, Slot: slot})

	act := w.engine.MatchAsync(slot, w.listenerFor(name, slot))
	w.setCurrent(act)
	score, err := act.Wait()
	w.clearCurrent()

	ev := completionEvent(name, slot, err)
	if err == nil {
		ev.Score = score
	}
	w.publish(ev)
}

func (w *Watcher) runDownloadImage() {
	const name = "download-image"
	w.publish(Event{Workflow: name, Phase: PhaseStarted})

	act := w.engine.DownloadImageAsync(w.listenerFor(name, 0))
	w.setCurrent(act)
	_, err := act.Wait()
	w.clearCurrent()

	w.publish(completionEvent(name, 0, err))
}

func (w *Watcher) runDelete(slot uint16) {
	const name = "delete"
	err := w.engine.DeleteModel(slot)
	w.publish(completionEvent(name, slot, err))
}

func (w *Watcher) runEmptyLibrary() {
	const name = "empty-library"
	err := w.engine.EmptyLibrary()
	w.publish(completionEvent(name, 0, err))
}

func (w *Watcher) runTemplateCount() {
	const name = "template-count"
	count, err := w.engine.TemplateCount()
	ev := completionEvent(name, 0, err)
	if err == nil {
		ev.Count = count
	}
	w.publish(ev)
}

func completionEvent(name string, slot uint16, err error) Event {
	if err == nil {
		return Event{Workflow: name, Phase: PhaseSucceeded, Slot: slot}
	}
	if err == fpm10.ErrCancelled {
		return Event{Workflow: name, Phase: PhaseCancelled, Slot: slot}
	}
	return Event{Workflow: name, Phase: PhaseFailed, Slot: slot, Error: errString(err)}
}
