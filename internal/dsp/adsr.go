package dsp

import "math"

type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

// ADSR is an exponential attack-decay-sustain-release envelope.
type ADSR struct {
	sustain     float64
	attackCoef  float64
	decayCoef   float64
	releaseCoef float64
	stage       Stage
	value       float64
	target      float64
}

// NewADSR creates an envelope; times are in seconds and floored at 1 ms.
func NewADSR(sampleRate, attack, decay, sustain, release float64) *ADSR {
	return &ADSR{
		sustain:     math.Min(math.Max(sustain, 0), 1),
		attackCoef:  coef(attack, sampleRate),
		decayCoef:   coef(decay, sampleRate),
		releaseCoef: coef(release, sampleRate),
	}
}

func coef(seconds, sampleRate float64) float64 {
	return math.Exp(-1 / (math.Max(seconds, 0.001) * sampleRate))
}

// Trigger starts the attack from the current level.
func (e *ADSR) Trigger() {
	e.stage = StageAttack
	e.target = 1
}

// Release starts the release stage.
func (e *ADSR) Release() {
	if e.stage != StageIdle {
		e.stage = StageRelease
		e.target = 0
	}
}

func (e *ADSR) Active() bool { return e.stage != StageIdle }
func (e *ADSR) Stage() Stage { return e.stage }

func (e *ADSR) Next() float64 {
	switch e.stage {
	case StageAttack:
		// aim past 1 so the exponential reaches full level in finite time
		e.value = 1.2 + (e.value-1.2)*e.attackCoef
		if e.value >= 1 {
			e.value = 1
			e.stage = StageDecay
			e.target = e.sustain
		}
	case StageDecay:
		e.value = e.target + (e.value-e.target)*e.decayCoef
		if e.value <= e.sustain+0.001 {
			e.value = e.sustain
			e.stage = StageSustain
		}
	case StageSustain:
		e.value = e.sustain
	case StageRelease:
		e.value = e.target + (e.value-e.target)*e.releaseCoef
		if e.value <= 0.001 {
			e.value = 0
			e.stage = StageIdle
		}
	default:
		e.value = 0
	}
	return e.value
}

func (e *ADSR) Reset() {
	e.stage, e.value, e.target = StageIdle, 0, 0
}
