// Package devices lists the V4L2 and ALSA capture devices available to the
// device recording source. Discovery reads sysfs, procfs and the udev
// symlink trees, so it needs no device access.
package devices

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wasd845/AVGraphics/internal/logging"
)

// VideoDevice is a video4linux node.
type VideoDevice struct {
	Path string `json:"path"`
	Name string `json:"name"`
	// ID is the /dev/v4l/by-id (or by-path) name, stable across reboots.
	// Empty when udev created no symlink.
	ID string `json:"id,omitempty"`
	// Index is the node index within its driver; capture nodes are 0.
	Index int `json:"index"`
}

// AudioDevice is an ALSA PCM with a capture stream.
type AudioDevice struct {
	Card     int    `json:"card"`
	Device   int    `json:"device"`
	CardID   string `json:"card_id"`
	CardName string `json:"card_name"`
	Name     string `json:"name"`
	// ALSA is the hw:C,D name passed to ffmpeg.
	ALSA string `json:"alsa"`
}

// Detector finds capture devices below Root.
type Detector struct {
	// Root prefixes /sys, /dev and /proc. Empty means "/".
	Root   string
	logger logging.Logger
}

// NewDetector returns a detector for the running system.
func NewDetector() *Detector {
	return &Detector{logger: logging.GetLogger("devices")}
}

func (d *Detector) path(elem ...string) string {
	root := d.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(append([]string{root}, elem...)...)
}

func (d *Detector) log() logging.Logger {
	if d.logger == nil {
		d.logger = logging.GetLogger("devices")
	}
	return d.logger
}

// Video returns the video4linux nodes sorted by path.
func (d *Detector) Video() ([]VideoDevice, error) {
	classDir := d.path("sys", "class", "video4linux")
	entries, err := os.ReadDir(classDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []VideoDevice{}, nil
		}
		return nil, fmt.Errorf("read video4linux: %w", err)
	}

	links := d.symlinks("by-id")
	pathLinks := d.symlinks("by-path")

	devices := make([]VideoDevice, 0, len(entries))
	for _, entry := range entries {
		node := entry.Name()
		if !strings.HasPrefix(node, "video") {
			continue
		}
		index := readInt(filepath.Join(classDir, node, "index"))
		id := stableID(links[node], index)
		if id == "" {
			id = stableID(pathLinks[node], index)
		}
		devices = append(devices, VideoDevice{
			Path:  "/dev/" + node,
			Name:  readString(filepath.Join(classDir, node, "name")),
			ID:    id,
			Index: index,
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	d.log().Debug("Found video devices", "count", len(devices))
	return devices, nil
}

// symlinks maps video node names to the udev symlink names pointing at them.
func (d *Detector) symlinks(kind string) map[string][]string {
	dir := d.path("dev", "v4l", kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	out := make(map[string][]string)
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		node := filepath.Base(target)
		out[node] = append(out[node], entry.Name())
	}
	return out
}

// stableID picks the link ending in -video-index<N> for the node's index,
// or the only link when there is one.
func stableID(links []string, index int) string {
	suffix := fmt.Sprintf("-video-index%d", index)
	for _, name := range links {
		if strings.HasSuffix(name, suffix) {
			return name
		}
	}
	if len(links) == 1 {
		return links[0]
	}
	return ""
}

// ResolveVideo turns a stable device ID into a device path. Paths under
// /dev are returned unchanged.
func (d *Detector) ResolveVideo(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty video device")
	}
	if strings.HasPrefix(id, "/dev/") {
		return id, nil
	}
	for _, kind := range []string{"by-id", "by-path"} {
		link := d.path("dev", "v4l", kind, id)
		if _, err := os.Lstat(link); err == nil {
			return filepath.Join("/dev/v4l", kind, id), nil
		}
	}
	return "", fmt.Errorf("no video device with id %s", id)
}

// Audio returns the ALSA PCMs that can capture, ordered by card and device.
func (d *Detector) Audio() ([]AudioDevice, error) {
	cards, err := d.cards()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(d.path("proc", "asound", "pcm"))
	if err != nil {
		if os.IsNotExist(err) {
			return []AudioDevice{}, nil
		}
		return nil, fmt.Errorf("read asound pcm: %w", err)
	}
	defer f.Close()

	devices := []AudioDevice{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		dev, ok := parsePCM(scanner.Text())
		if !ok {
			continue
		}
		if c, found := cards[dev.Card]; found {
			dev.CardID, dev.CardName = c.id, c.name
		}
		devices = append(devices, dev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read asound pcm: %w", err)
	}
	d.log().Debug("Found audio capture devices", "count", len(devices))
	return devices, nil
}

// parsePCM reads one /proc/asound/pcm line:
//
//	00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
func parsePCM(line string) (AudioDevice, bool) {
	addr, rest, ok := strings.Cut(line, ":")
	if !ok {
		return AudioDevice{}, false
	}
	cardStr, devStr, ok := strings.Cut(strings.TrimSpace(addr), "-")
	if !ok {
		return AudioDevice{}, false
	}
	cardNum, err1 := strconv.Atoi(cardStr)
	devNum, err2 := strconv.Atoi(devStr)
	if err1 != nil || err2 != nil {
		return AudioDevice{}, false
	}

	fields := strings.Split(rest, ":")
	capture := false
	for _, field := range fields[1:] {
		if strings.HasPrefix(strings.TrimSpace(field), "capture") {
			capture = true
		}
	}
	if !capture {
		return AudioDevice{}, false
	}
	return AudioDevice{
		Card:   cardNum,
		Device: devNum,
		Name:   strings.TrimSpace(fields[0]),
		ALSA:   fmt.Sprintf("hw:%d,%d", cardNum, devNum),
	}, true
}

type card struct {
	id   string
	name string
}

// cards parses /proc/asound/cards:
//
//	0 [PCH            ]: HDA-Intel - HDA Intel PCH
func (d *Detector) cards() (map[int]card, error) {
	data, err := os.ReadFile(d.path("proc", "asound", "cards"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]card{}, nil
		}
		return nil, fmt.Errorf("read asound cards: %w", err)
	}
	out := make(map[int]card)
	for _, line := range strings.Split(string(data), "\n") {
		num, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		lb, rb := strings.Index(rest, "["), strings.Index(rest, "]")
		if lb < 0 || rb < lb {
			continue
		}
		c := card{id: strings.TrimSpace(rest[lb+1 : rb])}
		if _, name, ok := strings.Cut(rest[rb:], " - "); ok {
			c.name = strings.TrimSpace(name)
		}
		out[n] = c
	}
	return out, nil
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readInt(path string) int {
	v, _ := strconv.Atoi(readString(path))
	return v
}
