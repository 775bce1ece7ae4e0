package workflow

import (
	"sync"
	"time"

	"github.com/librescoot/fpm10-driver/pkg/fpm10"
)

// Config holds workflow-engine-level behavior, including the enrol
// settling sleep: the interactive Enroll workflow sleeps
// DefaultTimeout between the first scan's removal and the second
// put-finger callback; EnrollWithData never does. Both behaviors are
// preserved exactly and gated by EnrollSettleSleep so tests (and
// callers who've measured their own hardware) can pin either one down
// explicitly instead of inheriting undocumented timing.
type Config struct {
	// EnrollSettleSleep enables the sleep between the two captures in
	// the interactive Enroll workflow. Default true. EnrollWithData
	// never sleeps here regardless of this setting, an intentional
	// asymmetry, not a bug.
	EnrollSettleSleep bool
}

// DefaultConfig returns the interactive Enroll workflow's default behavior.
func DefaultConfig() Config {
	return Config{EnrollSettleSleep: true}
}

// cancelToken lets internal workflow steps poll for cancellation
// without depending on Activity directly; the synchronous entry
// points use a token that never requests cancellation.
type cancelToken interface {
	CancelRequested() bool
}

type neverCancel struct{}

func (neverCancel) CancelRequested() bool { return false }

// EnrollmentBundle is the result of the data-returning enrol workflow:
// the two raw scans and the combined template's feature vector.
type EnrollmentBundle struct {
	Features []byte
	Scan1    []byte
	Scan2    []byte
}

// Engine serializes workflows against a single Sensor: at most one
// workflow is ever in flight, whether invoked synchronously or
// submitted asynchronously.
type Engine struct {
	sensor     *fpm10.Sensor
	capacity   uint16
	packageLen int
	cfg        Config

	mu sync.Mutex
}

// NewEngine builds an Engine around a Sensor whose session handshake
// has already completed. capacity and packageLen normally come from
// the handshake's Params (library capacity, data-package length).
func NewEngine(sensor *fpm10.Sensor, capacity uint16, packageLen int, cfg Config) *Engine {
	return &Engine{sensor: sensor, capacity: capacity, packageLen: packageLen, cfg: cfg}
}

func (e *Engine) settleDuration() time.Duration {
	return e.sensor.Timeout()
}

func (e *Engine) waitForFingerprint(cancel cancelToken) error {
	for {
		if cancel.CancelRequested() {
			return fpm10.ErrCancelled
		}
		present, err := e.sensor.GetImage()
		if err != nil {
			return err
		}
		if present {
			return nil
		}
	}
}

func (e *Engine) waitForFingerRemoved(cancel cancelToken) error {
	for {
		if cancel.CancelRequested() {
			return fpm10.ErrCancelled
		}
		present, err := e.sensor.GetImage()
		if err != nil {
			return err
		}
		if !present {
			return nil
		}
	}
}

// --- Enroll ---------------------------------------------------------

func (e *Engine) enroll(slot uint16, listener HumanActionListener, cancel cancelToken) error {
	listener.PutFinger()
	if err := e.waitForFingerprint(cancel); err != nil {
		return err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer1); err != nil {
		return err
	}

	listener.RemoveFinger()
	if err := e.waitForFingerRemoved(cancel); err != nil {
		return err
	}

	if e.cfg.EnrollSettleSleep {
		time.Sleep(e.settleDuration())
	}

	listener.PutFinger()
	if err := e.waitForFingerprint(cancel); err != nil {
		return err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer2); err != nil {
		return err
	}

	listener.RemoveFinger()
	if err := e.waitForFingerRemoved(cancel); err != nil {
		return err
	}

	if err := e.sensor.CreateModel(); err != nil {
		return err
	}
	return e.sensor.Store(fpm10.Buffer2, slot)
}

// Enroll runs the interactive two-scan enrolment workflow into slot,
// holding the session mutex for its entire duration.
func (e *Engine) Enroll(slot uint16, listener HumanActionListener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enroll(slot, listener, neverCancel{})
}

// EnrollAsync submits Enroll to run in the background, returning an
// Activity handle immediately. The submitted task still acquires the
// session mutex before doing any sensor I/O, so this does not add
// concurrency against the sensor, only offloads the blocking call.
func (e *Engine) EnrollAsync(slot uint16, listener HumanActionListener) *Activity[struct{}] {
	act := NewActivity[struct{}]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		err := e.enroll(slot, listener, act)
		act.complete(struct{}{}, err)
	}()
	return act
}

// --- EnrollWithData ---------------------------------------------------

func (e *Engine) enrollWithData(slot uint16, listener HumanActionListener, cancel cancelToken) (EnrollmentBundle, error) {
	var bundle EnrollmentBundle

	listener.PutFinger()
	if err := e.waitForFingerprint(cancel); err != nil {
		return bundle, err
	}
	listener.WaitWhileDataTransferring()
	scan1, err := e.sensor.DownloadImage()
	if err != nil {
		return bundle, err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer1); err != nil {
		return bundle, err
	}

	listener.RemoveFinger()
	if err := e.waitForFingerRemoved(cancel); err != nil {
		return bundle, err
	}

	// No settle sleep here: EnrollWithData never inserts it, unlike Enroll.

	listener.PutFinger()
	if err := e.waitForFingerprint(cancel); err != nil {
		return bundle, err
	}
	listener.WaitWhileDataTransferring()
	scan2, err := e.sensor.DownloadImage()
	if err != nil {
		return bundle, err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer2); err != nil {
		return bundle, err
	}

	listener.RemoveFinger()
	if err := e.waitForFingerRemoved(cancel); err != nil {
		return bundle, err
	}

	if err := e.sensor.CreateModel(); err != nil {
		return bundle, err
	}
	features, err := e.sensor.DownloadChar(fpm10.Buffer2)
	if err != nil {
		return bundle, err
	}
	if err := e.sensor.Store(fpm10.Buffer2, slot); err != nil {
		return bundle, err
	}

	bundle.Scan1, bundle.Scan2, bundle.Features = scan1, scan2, features
	return bundle, nil
}

// EnrollWithData runs the data-returning enrolment workflow, storing
// into slot and returning both raw scans plus the combined template.
func (e *Engine) EnrollWithData(slot uint16, listener HumanActionListener) (EnrollmentBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enrollWithData(slot, listener, neverCancel{})
}

// EnrollWithDataAsync is EnrollWithData's async counterpart.
func (e *Engine) EnrollWithDataAsync(slot uint16, listener HumanActionListener) *Activity[EnrollmentBundle] {
	act := NewActivity[EnrollmentBundle]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		bundle, err := e.enrollWithData(slot, listener, act)
		act.complete(bundle, err)
	}()
	return act
}

// --- Search -----------------------------------------------------------

func (e *Engine) search(listener HumanActionListener, cancel cancelToken) (*fpm10.SearchResult, error) {
	listener.PutFinger()
	if err := e.waitForFingerprint(cancel); err != nil {
		return nil, err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer1); err != nil {
		return nil, err
	}
	listener.RemoveFinger()
	if err := e.waitForFingerRemoved(cancel); err != nil {
		return nil, err
	}
	return e.sensor.Search(fpm10.Buffer1, 0, e.capacity)
}

// Search runs put-finger/capture/search against the whole library.
func (e *Engine) Search(listener HumanActionListener) (*fpm10.SearchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.search(listener, neverCancel{})
}

// SearchAsync is Search's async counterpart.
func (e *Engine) SearchAsync(listener HumanActionListener) *Activity[*fpm10.SearchResult] {
	act := NewActivity[*fpm10.SearchResult]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		result, err := e.search(listener, act)
		act.complete(result, err)
	}()
	return act
}

// --- Match --------------------------------------------------------------

func (e *Engine) match(slot uint16, listener HumanActionListener, cancel cancelToken) (int, error) {
	if err := e.sensor.LoadChar(fpm10.Buffer1, slot); err != nil {
		return -1, err
	}
	listener.PutFinger()
	if err := e.waitForFingerprint(cancel); err != nil {
		return -1, err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer2); err != nil {
		return -1, err
	}
	listener.RemoveFinger()
	if err := e.waitForFingerRemoved(cancel); err != nil {
		return -1, err
	}
	return e.sensor.Match()
}

// Match loads slot into buffer 1 then matches a live capture against it.
func (e *Engine) Match(slot uint16, listener HumanActionListener) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match(slot, listener, neverCancel{})
}

// MatchAsync is Match's async counterpart.
func (e *Engine) MatchAsync(slot uint16, listener HumanActionListener) *Activity[int] {
	act := NewActivity[int]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		score, err := e.match(slot, listener, act)
		act.complete(score, err)
	}()
	return act
}

// --- DownloadImage --------------------------------------------------------

func (e *Engine) downloadImage(listener HumanActionListener, cancel cancelToken) ([]byte, error) {
	listener.PutFinger()
	if err := e.waitForFingerprint(cancel); err != nil {
		return nil, err
	}
	listener.RemoveFinger()
	return e.sensor.DownloadImage()
}

// DownloadImage captures a live finger image and streams it to the
// host. Unlike the other capture workflows it does not poll for
// finger removal afterward.
func (e *Engine) DownloadImage(listener HumanActionListener) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.downloadImage(listener, neverCancel{})
}

// DownloadImageAsync is DownloadImage's async counterpart.
func (e *Engine) DownloadImageAsync(listener HumanActionListener) *Activity[[]byte] {
	act := NewActivity[[]byte]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		img, err := e.downloadImage(listener, act)
		act.complete(img, err)
	}()
	return act
}

// --- UploadAndSearch ------------------------------------------------------

func (e *Engine) uploadAndSearch(scan []byte) (*fpm10.SearchResult, error) {
	if err := e.sensor.UploadImage(scan, e.packageLen); err != nil {
		return nil, err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer1); err != nil {
		return nil, err
	}
	return e.sensor.Search(fpm10.Buffer1, 0, e.capacity)
}

// UploadAndSearch pushes a previously-captured scan to the device and
// searches the library against it, with no human interaction.
func (e *Engine) UploadAndSearch(scan []byte) (*fpm10.SearchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uploadAndSearch(scan)
}

// UploadAndSearchAsync is UploadAndSearch's async counterpart.
func (e *Engine) UploadAndSearchAsync(scan []byte) *Activity[*fpm10.SearchResult] {
	act := NewActivity[*fpm10.SearchResult]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		result, err := e.uploadAndSearch(scan)
		act.complete(result, err)
	}()
	return act
}

// --- Non-interactive enrol variants ---------------------------------------

func (e *Engine) enrollFromTemplate(slot uint16, features []byte) error {
	if err := e.sensor.UploadChar(fpm10.Buffer2, features, e.packageLen); err != nil {
		return err
	}
	return e.sensor.Store(fpm10.Buffer2, slot)
}

// EnrollFromTemplate stores a feature vector obtained off-device (e.g.
// from a previous EnrollWithData) directly into slot.
func (e *Engine) EnrollFromTemplate(slot uint16, features []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enrollFromTemplate(slot, features)
}

// EnrollFromTemplateAsync is EnrollFromTemplate's async counterpart.
func (e *Engine) EnrollFromTemplateAsync(slot uint16, features []byte) *Activity[struct{}] {
	act := NewActivity[struct{}]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		act.complete(struct{}{}, e.enrollFromTemplate(slot, features))
	}()
	return act
}

func (e *Engine) enrollFromScans(slot uint16, scan1, scan2 []byte) error {
	if err := e.sensor.UploadImage(scan1, e.packageLen); err != nil {
		return err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer1); err != nil {
		return err
	}
	time.Sleep(e.settleDuration())
	if err := e.sensor.UploadImage(scan2, e.packageLen); err != nil {
		return err
	}
	if err := e.sensor.Image2Tz(fpm10.Buffer2); err != nil {
		return err
	}
	if err := e.sensor.CreateModel(); err != nil {
		return err
	}
	return e.sensor.Store(fpm10.Buffer2, slot)
}

// EnrollFromScans combines two previously-captured scans into a model
// and stores it into slot, without any human interaction.
func (e *Engine) EnrollFromScans(slot uint16, scan1, scan2 []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enrollFromScans(slot, scan1, scan2)
}

// EnrollFromScansAsync is EnrollFromScans's async counterpart.
func (e *Engine) EnrollFromScansAsync(slot uint16, scan1, scan2 []byte) *Activity[struct{}] {
	act := NewActivity[struct{}]()
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		act.complete(struct{}{}, e.enrollFromScans(slot, scan1, scan2))
	}()
	return act
}

// --- Library management ----------------------------------------------------

// TemplateCount reports the number of templates currently stored.
func (e *Engine) TemplateCount() (uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sensor.TemplateCount()
}

// EmptyLibrary clears every stored template.
func (e *Engine) EmptyLibrary() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sensor.EmptyLib()
}

// DeleteModel deletes a single slot.
func (e *Engine) DeleteModel(slot uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sensor.DeleteChar(slot, 1)
}

// DeleteModels deletes count consecutive slots starting at slot.
func (e *Engine) DeleteModels(slot, count uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sensor.DeleteChar(slot, count)
}
