package index

// Event is a notification published by the Controller.
type Event interface {
	Operation() string
}

// Op identifies the controller operation an event belongs to.
type Op struct {
	OpID string
}

func (o Op) Operation() string { return o.OpID }

type (
	// RefreshStatus reports progress of a running refresh.
	RefreshStatus struct {
		Op
		Text string
	}
	// RefreshFailed is published when a refresh could not complete; the
	// previous snapshot is kept.
	RefreshFailed struct {
		Op
		Err error
	}
	RefreshFinished struct {
		Op
	}
	// IndexUpdated carries a copy of the collection whenever membership or
	// any field changed. Published at most once per operation.
	IndexUpdated struct {
		Op
		Files []ChangedFile
	}
	CommitStatus struct {
		Op
		Text string
	}
	CommitFinished struct {
		Op
		SHA string
	}
	CommitFailed struct {
		Op
		Err error
	}
	// AmendMessageAvailable offers the HEAD message for reuse when amend
	// mode is switched on.
	AmendMessageAvailable struct {
		Op
		Message string
	}
)

// Sink receives controller events. Notify is called from the goroutine doing
// the work and must not call mutating Controller methods synchronously.
type Sink interface {
	Notify(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) { f(e) }

// ChannelSink forwards events to a channel. Sends block when the buffer is
// full, so the receiver must keep draining it.
type ChannelSink chan Event

func (c ChannelSink) Notify(e Event) { c <- e }

type nopSink struct{}

func (nopSink) Notify(Event) {}
