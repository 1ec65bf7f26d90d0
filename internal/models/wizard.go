package models

// RotateRequest commits a rotation by the given clockwise degrees
type RotateRequest struct {
	Degrees int `json:"degrees"`
}

// CropRequest commits a crop. The selection is expressed in the coordinate
// space the client displayed the image at.
type CropRequest struct {
	X             int `json:"x"`
	Y             int `json:"y"`
	Width         int `json:"width"`
	Height        int `json:"height"`
	DisplayWidth  int `json:"display_width"`
	DisplayHeight int `json:"display_height"`
}

// SelectVersionRequest picks a named image version as current
type SelectVersionRequest struct {
	Version string `json:"version"`
}

// StageRequest jumps to a previously unlocked wizard stage
type StageRequest struct {
	Stage string `json:"stage"`
}
