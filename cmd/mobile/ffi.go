//go:build !linux
// +build !linux

// FFI bridge compiling the sync core into the mobile shell.
// Build as shared library: libganapp.so (Android) / ganapp.framework (iOS).
// Strings cross the boundary as JSON; every returned *C.char must be
// released with FreeString. Blocking calls (Submit, Drain) belong off
// the UI thread.
package main

/*
#cgo CFLAGS: -Wall -Wextra
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/Barneycle/ganapp-core/internal/config"
	"github.com/Barneycle/ganapp-core/internal/logging"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/netmon"
	"github.com/Barneycle/ganapp-core/internal/remote"
	"github.com/Barneycle/ganapp-core/internal/store"
	gsync "github.com/Barneycle/ganapp-core/internal/sync"
	"github.com/Barneycle/ganapp-core/internal/sync/conflict"
	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

var (
	initOnce sync.Once
	initOK   bool

	st   *store.Store
	core *gsync.Syncer

	lastErr string
	lastMu  sync.RWMutex
)

//export Init
// Init builds and starts the sync core. dataDir, apiURL and apiKey
// override the configured defaults when non-empty; the shell owns the
// platform data directory and the session token. Returns 0 on success.
func Init(dataDir, apiURL, apiKey *C.char) C.int {
	initOnce.Do(func() {
		initOK = initialize(C.GoString(dataDir), C.GoString(apiURL), C.GoString(apiKey))
	})
	if !initOK {
		return 1
	}
	return 0
}

func initialize(dataDir, apiURL, apiKey string) bool {
	cfg, err := config.Load("")
	if err != nil {
		setLastError(fmt.Sprintf("failed to load configuration: %v", err))
		return false
	}
	if dataDir != "" {
		cfg.DB.DataDir = dataDir
	}
	if apiURL != "" {
		cfg.Remote.BaseURL = apiURL
	}
	if apiKey != "" {
		cfg.Remote.APIKey = apiKey
	}

	if err := logging.Init(cfg.LogLevel, false); err != nil {
		setLastError(fmt.Sprintf("failed to init logging: %v", err))
		return false
	}

	if err := os.MkdirAll(cfg.DB.DataDir, 0o755); err != nil {
		setLastError(fmt.Sprintf("failed to create data directory: %v", err))
		return false
	}
	st, err = store.Open(cfg.DBPath(), cfg.DB.BusyTimeout)
	if err != nil {
		setLastError(fmt.Sprintf("failed to open database: %v", err))
		return false
	}

	backend := remote.NewClient(&remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Remote.Timeout,
	})

	monitor := netmon.NewMonitor(&netmon.DialProber{
		Addrs:   cfg.Network.ProbeAddrs,
		Timeout: cfg.Network.ProbeTimeout,
	}, &netmon.MonitorConfig{
		PollInterval: cfg.Network.PollInterval,
		Debounce:     cfg.Network.Debounce,
	})

	q := queue.NewQueue(st, queue.NewRegistry(), conflict.NewResolver(), &queue.Config{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffCap:  cfg.Sync.BackoffCap,
	})

	core = gsync.NewSyncer(st, q, monitor, cfg.Sync.DrainInterval)
	for _, dt := range []models.DataType{
		models.DataTypeEvent,
		models.DataTypeRegistration,
		models.DataTypeSurveyResponse,
		models.DataTypeAttendanceLog,
		models.DataTypeCertificate,
	} {
		core.Register(dt, backend)
	}

	if err := core.Start(context.Background()); err != nil {
		setLastError(fmt.Sprintf("failed to start sync core: %v", err))
		return false
	}
	return true
}

//export Cleanup
// Cleanup stops the sync core and closes the database. Queued entries
// stay on disk for the next Init.
func Cleanup() {
	if core != nil {
		core.Stop()
	}
	if st != nil {
		st.Close()
	}
	logging.Sync()
}

//export GetLastError
// GetLastError returns the last error message.
// Returns a C string that must be freed by the caller.
func GetLastError() *C.char {
	lastMu.RLock()
	defer lastMu.RUnlock()

	return C.CString(lastErr)
}

func setLastError(err string) {
	lastMu.Lock()
	defer lastMu.Unlock()
	lastErr = err
}

//export ReportConnectivity
// ReportConnectivity pushes the platform's connectivity state into the
// monitor. The shell owns the real platform callbacks (NetInfo and
// friends); the dial prober is only the fallback between reports.
func ReportConnectivity(online C.int) {
	if core == nil {
		return
	}
	core.Monitor().Report(online != 0)
}

// =====================================================
// Write path
// =====================================================

//export Submit
// Submit runs a domain mutation through the write-through path.
// Returns a JSON SubmitResult (outcome applied or queued) that must be
// freed by the caller.
func Submit(dataType, operation, payload *C.char) *C.char {
	if core == nil {
		setLastError("sync core not initialized")
		return nil
	}

	op := &models.QueuedOperation{
		DataType:  models.DataType(C.GoString(dataType)),
		Operation: models.Operation(C.GoString(operation)),
		Payload:   json.RawMessage(C.GoString(payload)),
	}
	res, err := core.Submit(context.Background(), op)
	if err != nil {
		setLastError(fmt.Sprintf("submit failed: %v", err))
		return nil
	}
	return marshalC(res)
}

//export RequestDrain
// RequestDrain asks for an asynchronous drain pass. Returns 1 when the
// device is offline and the request was dropped.
func RequestDrain() C.int {
	if core == nil {
		setLastError("sync core not initialized")
		return 1
	}
	if !core.Monitor().IsOnline() {
		setLastError("device is offline")
		return 1
	}
	core.RequestDrain()
	return 0
}

//export RetryEntry
// RetryEntry releases one failed queue entry back to pending and
// requests a drain. Returns 0 on success.
func RetryEntry(id *C.char) C.int {
	if core == nil {
		setLastError("sync core not initialized")
		return 1
	}
	if err := core.Queue().Retry(models.UUID(C.GoString(id))); err != nil {
		setLastError(fmt.Sprintf("retry failed: %v", err))
		return 1
	}
	core.RequestDrain()
	return 0
}

//export RetryAll
// RetryAll releases every failed queue entry and requests a drain.
// Returns how many entries were released, -1 on error.
func RetryAll() C.int {
	if core == nil {
		setLastError("sync core not initialized")
		return -1
	}
	released, err := core.Queue().RetryAll()
	if err != nil {
		setLastError(fmt.Sprintf("retry failed: %v", err))
		return -1
	}
	core.RequestDrain()
	return C.int(released)
}

// =====================================================
// Status surfaces
// =====================================================

//export SyncStatus
// SyncStatus returns the current sync state as JSON: online flag,
// network detail, queue count, draining flag. Must be freed by the
// caller.
func SyncStatus() *C.char {
	if core == nil {
		setLastError("sync core not initialized")
		return nil
	}
	status, err := core.Status()
	if err != nil {
		setLastError(fmt.Sprintf("failed to read status: %v", err))
		return nil
	}
	return marshalC(status)
}

//export QueueSnapshot
// QueueSnapshot returns the full queue state as JSON. Must be freed by
// the caller.
func QueueSnapshot() *C.char {
	if core == nil {
		setLastError("sync core not initialized")
		return nil
	}
	snap, err := core.Queue().Stats()
	if err != nil {
		setLastError(fmt.Sprintf("failed to read queue: %v", err))
		return nil
	}
	return marshalC(snap)
}

//export ListNotices
// ListNotices returns undismissed conflict notices as a JSON array.
// Must be freed by the caller.
func ListNotices() *C.char {
	if core == nil {
		setLastError("sync core not initialized")
		return nil
	}
	notices, err := core.Notices()
	if err != nil {
		setLastError(fmt.Sprintf("failed to list notices: %v", err))
		return nil
	}
	if notices == nil {
		notices = []*models.SyncNotice{}
	}
	return marshalC(notices)
}

//export DismissNotice
// DismissNotice marks a conflict notice seen. Returns 0 on success.
func DismissNotice(id *C.char) C.int {
	if core == nil {
		setLastError("sync core not initialized")
		return 1
	}
	if err := core.DismissNotice(models.UUID(C.GoString(id))); err != nil {
		setLastError(fmt.Sprintf("dismiss failed: %v", err))
		return 1
	}
	return 0
}

// =====================================================
// Local cache reads
// =====================================================

//export ListRecords
// ListRecords reads cached records of one data type, newest pages via
// limit and offset. Returns a JSON array that must be freed by the
// caller.
func ListRecords(dataType *C.char, limit, offset C.int) *C.char {
	if st == nil {
		setLastError("sync core not initialized")
		return nil
	}
	records, err := listRecords(models.DataType(C.GoString(dataType)), int(limit), int(offset))
	if err != nil {
		setLastError(fmt.Sprintf("failed to list records: %v", err))
		return nil
	}
	return marshalC(records)
}

//export GetRecord
// GetRecord reads one cached record by id. Returns JSON that must be
// freed by the caller, nil when the record is not cached.
func GetRecord(dataType, id *C.char) *C.char {
	if st == nil {
		setLastError("sync core not initialized")
		return nil
	}
	record, err := getRecord(models.DataType(C.GoString(dataType)), models.UUID(C.GoString(id)))
	if err != nil {
		setLastError(fmt.Sprintf("failed to get record: %v", err))
		return nil
	}
	return marshalC(record)
}

func listRecords(dt models.DataType, limit, offset int) (any, error) {
	switch dt {
	case models.DataTypeEvent:
		return st.ListEvents(nil, limit, offset)
	case models.DataTypeRegistration:
		return st.ListRegistrations(nil, limit, offset)
	case models.DataTypeSurveyResponse:
		return st.ListSurveyResponses(nil, limit, offset)
	case models.DataTypeAttendanceLog:
		return st.ListAttendanceLogs(nil, limit, offset)
	case models.DataTypeCertificate:
		return st.ListCertificates(nil, limit, offset)
	}
	return nil, fmt.Errorf("unknown data type %q", dt)
}

func getRecord(dt models.DataType, id models.UUID) (any, error) {
	switch dt {
	case models.DataTypeEvent:
		return st.GetEvent(id)
	case models.DataTypeRegistration:
		return st.GetRegistration(id)
	case models.DataTypeSurveyResponse:
		return st.GetSurveyResponse(id)
	case models.DataTypeAttendanceLog:
		return st.GetAttendanceLog(id)
	case models.DataTypeCertificate:
		return st.GetCertificate(id)
	}
	return nil, fmt.Errorf("unknown data type %q", dt)
}

// =====================================================
// Memory management helpers
// =====================================================

//export FreeString
// FreeString frees a string allocated by Go.
func FreeString(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

func marshalC(v any) *C.char {
	data, err := json.Marshal(v)
	if err != nil {
		setLastError(fmt.Sprintf("failed to serialize: %v", err))
		return nil
	}
	return C.CString(string(data))
}

func main() {
	// Entry point required by c-shared build mode, never executed when
	// loaded as a library.
}
