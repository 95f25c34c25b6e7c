package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/filmroom/filmroom-agent/internal/player"
	"github.com/filmroom/filmroom-agent/internal/store"
)

// GenerateEDL renders a CMX 3600 cut list. Record times come from each
// clip's position on the virtual playback axis, so the EDL reproduces
// exactly what the player would show.
func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, clip := range clips {
		srcIn := msToTimecode(clip.SourceInMs, fps)
		srcOut := msToTimecode(clip.SourceOutMs, fps)
		recIn := msToTimecode(clip.RecordInMs, fps)
		recOut := msToTimecode(clip.RecordOutMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// ResolveSequence maps a playback sequence to EDL events. Clips whose
// video has no media path are skipped and reported as unresolved.
func ResolveSequence(seq *player.Sequence, videos map[string]*store.Video) ([]ResolvedClip, []string) {
	var resolved []ResolvedClip
	var unresolved []string

	for _, seg := range seq.Segments {
		c := seg.Clip
		v := videos[c.VideoID]
		path := ""
		if v != nil {
			path = v.LocalPath
			if path == "" {
				path = v.URL
			}
		}
		if path == "" {
			unresolved = append(unresolved, c.ID)
			continue
		}

		name := c.VideoName
		if name == "" && v != nil {
			name = v.Name
		}
		resolved = append(resolved, ResolvedClip{
			ClipName:    SanitizeName(name, 80),
			MediaPath:   path,
			SourceInMs:  c.SourceStartOffsetMs,
			SourceOutMs: c.SourceEndOffsetMs,
			RecordInMs:  seg.VirtualStartMs,
			RecordOutMs: seg.VirtualEndMs,
		})
	}
	return resolved, unresolved
}

func msToTimecode(ms int64, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
