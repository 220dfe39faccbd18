package synth

// accentVelocityThreshold is the velocity at or above which a note is
// played accented, per the modeled hardware.
const accentVelocityThreshold = 100

// noNote marks an empty note slot.
const noNote = -1

// TriggerKind describes how a note event changed the voice.
type TriggerKind int

const (
	// TriggerNone means the event did not change the voice.
	TriggerNone TriggerKind = iota
	// TriggerFresh means a new note started from silence: envelopes
	// retrigger and the oscillator phase restarts.
	TriggerFresh
	// TriggerSlide means a new note arrived while the gate was open: pitch
	// glides, envelopes keep running.
	TriggerSlide
	// TriggerRelease means the sounding note was released.
	TriggerRelease
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerNone:
		return "none"
	case TriggerFresh:
		return "fresh"
	case TriggerSlide:
		return "slide"
	case TriggerRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Voice is the monophonic note memory. It tracks a single current note;
// note-off events for anything but the current note are ignored, which
// reproduces the single-note-memory behavior of the modeled hardware.
type Voice struct {
	currentNote  int
	previousNote int
	gateOpen     bool
	accented     bool
	sliding      bool
}

// NewVoice returns an empty voice.
func NewVoice() *Voice {
	return &Voice{currentNote: noNote, previousNote: noNote}
}

// CurrentNote returns the sounding MIDI note, or -1 if none was ever
// triggered.
func (v *Voice) CurrentNote() int { return v.currentNote }

// PreviousNote returns the note a slide started from, or -1.
func (v *Voice) PreviousNote() int { return v.previousNote }

// GateOpen reports whether a note is currently held.
func (v *Voice) GateOpen() bool { return v.gateOpen }

// Accented reports whether the sounding note is accented.
func (v *Voice) Accented() bool { return v.accented }

// Sliding reports whether the last note arrived as a legato slide.
func (v *Voice) Sliding() bool { return v.sliding }

// NoteOn processes a note-on event and returns how the voice changed.
// Velocity 0 is treated as a note-off, matching the wire convention of
// the modeled hardware's host interface.
func (v *Voice) NoteOn(note, velocity int) TriggerKind {
	if note < 0 || note > 127 {
		return TriggerNone
	}

	if velocity <= 0 {
		return v.NoteOff(note)
	}

	accented := velocity >= accentVelocityThreshold

	if v.gateOpen {
		v.previousNote = v.currentNote
		v.currentNote = note
		v.sliding = true
		v.accented = accented

		return TriggerSlide
	}

	v.previousNote = v.currentNote
	v.currentNote = note
	v.gateOpen = true
	v.sliding = false
	v.accented = accented

	return TriggerFresh
}

// NoteOff processes a note-off event. Only the current note can close the
// gate; off events for notes already slid away from are no-ops.
func (v *Voice) NoteOff(note int) TriggerKind {
	if !v.gateOpen || note != v.currentNote {
		return TriggerNone
	}

	v.gateOpen = false
	v.sliding = false

	return TriggerRelease
}

// AllNotesOff force-closes the gate and clears all note memory.
func (v *Voice) AllNotesOff() {
	v.currentNote = noNote
	v.previousNote = noNote
	v.gateOpen = false
	v.accented = false
	v.sliding = false
}
