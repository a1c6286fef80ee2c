package detector

import (
	"wisefido-fall/internal/models"
)

// makePose 构建一个 33 关键点的姿态：肩 y=0.3，髋 y=0.3+diff，所有点位于 x=cx 且可见
func makePose(diff, cx float64) models.PersonPose {
	pose := make(models.PersonPose, models.LandmarkCount)
	for i := range pose {
		pose[i] = models.Keypoint{X: cx, Y: 0.5, Visibility: 0.9}
	}
	pose[models.LandmarkLeftShoulder].Y = 0.3
	pose[models.LandmarkRightShoulder].Y = 0.3
	pose[models.LandmarkLeftHip].Y = 0.3 + diff
	pose[models.LandmarkRightHip].Y = 0.3 + diff
	return pose
}

func frameOf(poses ...models.PersonPose) models.FrameDetections {
	return models.FrameDetections(poses)
}

// singleTrack 每帧一个人，肩髋差依次为 diffs
func singleTrack(diffs ...float64) []models.FrameDetections {
	frames := make([]models.FrameDetections, len(diffs))
	for i, d := range diffs {
		frames[i] = frameOf(makePose(d, 0.5))
	}
	return frames
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// fps=5 时的参数：window = standWindow = 10 帧
func fps5Params() Params {
	return DefaultParams(5)
}
