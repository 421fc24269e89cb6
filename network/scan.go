package network

import (
	"sync/atomic"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/provisd/radio"
)

// ErrScanBusy is returned when a scan is requested while another one is
// still in flight. Requests are rejected, never queued.
var ErrScanBusy = errors.New("a scan is already in flight")

// scanner makes sure at most one scan runs at a time.
type scanner struct {
	inFlight int32
}

// scan runs the radio scan in its own goroutine and hands the result to
// the callback. The callback is invoked exactly once, with an empty
// list when the underlying scan failed. The in-flight flag is released
// strictly after the callback returned, so a caller seeing ErrScanBusy
// can be sure no results are still on their way out.
func (s *scanner) scan(r radio.Radio, log Logger, callback func([]*radio.Network)) error {
	if !atomic.CompareAndSwapInt32(&s.inFlight, 0, 1) {
		return ErrScanBusy
	}

	go func() {
		networks, err := r.Scan()
		if err != nil {
			log.Errorf("could not scan: %v", err)
			networks = nil
		}

		callback(networks)

		atomic.StoreInt32(&s.inFlight, 0)
	}()

	return nil
}
