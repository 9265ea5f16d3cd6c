package faceswap

import (
	"fmt"
	"image"
	"strings"
)

// Region is a face bounding box in image coordinates, ordered the way detectors report it.
type Region struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func (r Region) Width() int  { return r.Right - r.Left }
func (r Region) Height() int { return r.Bottom - r.Top }
func (r Region) Area() int   { return r.Width() * r.Height() }

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// RegionFromRect converts an image rectangle to a Region.
func RegionFromRect(rect image.Rectangle) Region {
	return Region{Top: rect.Min.Y, Right: rect.Max.X, Bottom: rect.Max.Y, Left: rect.Min.X}
}

// Policy decides which of several detected faces takes part in a swap.
type Policy int

const (
	// PolicyFirst takes the first face in detector order.
	PolicyFirst Policy = iota
	// PolicyLargest takes the face with the largest area; ties keep detector order.
	PolicyLargest
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return PolicyFirst, nil
	case "largest":
		return PolicyLargest, nil
	default:
		return PolicyFirst, fmt.Errorf("unknown face selection policy: %q", s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyLargest:
		return "largest"
	default:
		return "first"
	}
}

// Select returns the region chosen by the policy. regions must not be empty.
func (p Policy) Select(regions []Region) Region {
	chosen := regions[0]
	if p != PolicyLargest {
		return chosen
	}
	for _, r := range regions[1:] {
		if r.Area() > chosen.Area() {
			chosen = r
		}
	}
	return chosen
}
