package detector

import (
	"math"

	"wisefido-fall/internal/models"
)

// 膝盖参与最低点计算时要求的可见度
const kneeVisibilityThreshold = 0.5

// Separation 计算肩髋垂直差 |mean(hip_y) - mean(shoulder_y)|
// 不按可见度过滤；缺少关键点时返回 *DataError
func Separation(pose models.PersonPose) (float64, error) {
	for _, idx := range []int{
		models.LandmarkLeftShoulder,
		models.LandmarkRightShoulder,
		models.LandmarkLeftHip,
		models.LandmarkRightHip,
	} {
		if idx >= len(pose) {
			return 0, &DataError{Landmark: idx, Length: len(pose)}
		}
	}

	hipsY := (pose[models.LandmarkLeftHip].Y + pose[models.LandmarkRightHip].Y) / 2
	shouldersY := (pose[models.LandmarkLeftShoulder].Y + pose[models.LandmarkRightShoulder].Y) / 2
	return math.Abs(hipsY - shouldersY), nil
}

// Center 可见关键点的平均位置
// 没有关键点可见度超过阈值时返回 (0,0)
func Center(pose models.PersonPose, visibilityThreshold float64) models.Point {
	var sumX, sumY float64
	n := 0
	for _, kp := range pose {
		if kp.Visibility > visibilityThreshold {
			sumX += kp.X
			sumY += kp.Y
			n++
		}
	}
	if n == 0 {
		return models.Point{}
	}
	return models.Point{X: sumX / float64(n), Y: sumY / float64(n)}
}

// LowestPoint 身体最低点 y（髋、肩，以及两膝都可见时的膝盖）
// 调用前需确保 Separation 已通过校验
func LowestPoint(pose models.PersonPose) (float64, bool) {
	hipsY := (pose[models.LandmarkLeftHip].Y + pose[models.LandmarkRightHip].Y) / 2
	shouldersY := (pose[models.LandmarkLeftShoulder].Y + pose[models.LandmarkRightShoulder].Y) / 2
	lowest := math.Max(hipsY, shouldersY)

	if len(pose) <= models.LandmarkRightKnee {
		return lowest, false
	}
	lKnee, rKnee := pose[models.LandmarkLeftKnee], pose[models.LandmarkRightKnee]
	if lKnee.Visibility > kneeVisibilityThreshold && rKnee.Visibility > kneeVisibilityThreshold {
		return math.Max(lowest, (lKnee.Y+rKnee.Y)/2), true
	}
	return lowest, false
}

func distance(a, b models.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
