package detect

// Geometry maps a horizontal pixel offset to a corrective turn.
type Geometry struct {
	// DXMax is the half-width of the camera frame in pixels.
	DXMax int
	// CenteredMax is the largest offset treated as already centered.
	CenteredMax int
	TurnMinMs   uint32
	TurnMaxMs   uint32
}

// DefaultGeometry is for a 640px wide frame.
var DefaultGeometry = Geometry{
	DXMax:       320,
	CenteredMax: 320 / 4,
	TurnMinMs:   250,
	TurnMaxMs:   4000,
}

// Decision is the outcome of Geometry.Decide.
type Decision struct {
	// Magnitude is |dx| capped at DXMax.
	Magnitude int
	// Centered means no turn is needed.
	Centered bool
	// Left is the turn direction when not centered.
	Left bool
	// TurnMs is the turn duration when not centered.
	TurnMs uint32
}

// Decide chooses between backing up straight away and turning toward the
// target for a time proportional to how far off-center it is.
// dx must be non-zero.
func (g Geometry) Decide(dx int) Decision {
	mag := dx
	if mag < 0 {
		mag = -mag
	}
	if dx > g.DXMax || dx < -g.DXMax {
		mag = g.DXMax
	}

	if mag <= g.CenteredMax {
		return Decision{Magnitude: mag, Centered: true}
	}

	span := uint64(g.TurnMaxMs - g.TurnMinMs)
	turn := uint64(g.TurnMinMs) + span*uint64(mag)/uint64(g.DXMax)
	return Decision{
		Magnitude: mag,
		Left:      dx < 0,
		TurnMs:    uint32(turn),
	}
}
