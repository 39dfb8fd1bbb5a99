// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Sample is one row of a sensor window as streamed by the watch firmware.
// Timestamps are carried through for persistence only.
type Sample struct {
	AccelTS float64 `json:"accel_ts"`
	Ax      float64 `json:"ax"` // accel
	Ay      float64 `json:"ay"`
	Az      float64 `json:"az"`

	GyroTS float64 `json:"gyro_ts"`
	Gx     float64 `json:"gx"` // gyro
	Gy     float64 `json:"gy"`
	Gz     float64 `json:"gz"`
}

// Column positions of a wire row.
const (
	ColAccelTS = iota
	ColAx
	ColAy
	ColAz
	ColGyroTS
	ColGx
	ColGy
	ColGz

	// WireChannels is the number of comma separated fields per row.
	WireChannels
)

// MotionChannel selects one of the six axes fed to feature extraction.
type MotionChannel int

const (
	AccelX MotionChannel = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ
)

// MotionChannels lists the extraction order: ax, ay, az, gx, gy, gz.
var MotionChannels = []MotionChannel{AccelX, AccelY, AccelZ, GyroX, GyroY, GyroZ}

func (c MotionChannel) String() string {
	switch c {
	case AccelX:
		return "ax"
	case AccelY:
		return "ay"
	case AccelZ:
		return "az"
	case GyroX:
		return "gx"
	case GyroY:
		return "gy"
	case GyroZ:
		return "gz"
	}
	return "unknown"
}

func (s Sample) motion(c MotionChannel) float64 {
	switch c {
	case AccelX:
		return s.Ax
	case AccelY:
		return s.Ay
	case AccelZ:
		return s.Az
	case GyroX:
		return s.Gx
	case GyroY:
		return s.Gy
	case GyroZ:
		return s.Gz
	}
	return 0
}

func sampleFromFields(v []float64) Sample {
	return Sample{
		AccelTS: v[ColAccelTS],
		Ax:      v[ColAx],
		Ay:      v[ColAy],
		Az:      v[ColAz],
		GyroTS:  v[ColGyroTS],
		Gx:      v[ColGx],
		Gy:      v[ColGy],
		Gz:      v[ColGz],
	}
}

// Row returns the sample in wire column order.
func (s Sample) Row() []float64 {
	return []float64{s.AccelTS, s.Ax, s.Ay, s.Az, s.GyroTS, s.Gx, s.Gy, s.Gz}
}
