package msg

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar is an io.Writer that renders how many bytes went through it.
type ProgressBar struct {
	Total      int64
	Current    int64
	Indent     int
	Label      string
	Start      time.Time
	W          io.Writer
	lastPrint  time.Time
	throbIndex int
}

var throbbers = []rune{'|', '/', '-', '\\'}

const barWidth = 40

func NewProgressBar(total int64, indent int, w io.Writer) *ProgressBar {
	return &ProgressBar{
		Total:     total,
		Indent:    indent,
		Start:     time.Now(),
		W:         w,
		lastPrint: time.Now(),
	}
}

func (pb *ProgressBar) Write(p []byte) (int, error) {
	n := len(p)
	pb.Current += int64(n)

	if time.Since(pb.lastPrint) > 40*time.Millisecond {
		pb.print(false)
		pb.lastPrint = time.Now()
	}
	return n, nil
}

func (pb *ProgressBar) print(finish bool) {
	prefix := strings.Repeat(" ", pb.Indent)
	if pb.Label != "" {
		prefix += pb.Label + " "
	}

	throb := throbbers[pb.throbIndex%len(throbbers)]
	pb.throbIndex++
	if finish {
		throb = ' '
	}

	if pb.Total <= 0 {
		fmt.Fprintf(pb.W, "\r%s%d KB %c", prefix, pb.Current/1024, throb)
		return
	}

	percent := float64(pb.Current) / float64(pb.Total)
	if finish {
		percent = 1
	}
	filled := min(int(percent*barWidth), barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("-", barWidth-filled)

	fmt.Fprintf(pb.W, "\r%s%6.f%% [%s] %c", prefix, percent*100, bar, throb)
}

// Finish draws the completed bar and ends the line.
func (pb *ProgressBar) Finish() {
	pb.print(true)
	fmt.Fprintf(pb.W, " %s\n", time.Since(pb.Start).Round(time.Millisecond))
}
