package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Global audio context singleton
var (
	globalAudioCtx     *oto.Context
	globalAudioCtxOnce sync.Once
	audioCtxReady      bool
)

// Chime is the short alert sound attached to each nag fire. Unlike a
// looping alarm it plays once per fire; the nag interval supplies the
// repetition.
type Chime struct {
	format *wavFormat
	data   []byte
}

// wavFormat holds PCM format information
type wavFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// initAudioContext initializes the global audio context once
func initAudioContext(format *wavFormat) {
	globalAudioCtxOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			log.Printf("Failed to initialize audio context: %v", err)
			return
		}

		// Wait for the hardware audio devices to be ready
		<-readyChan

		globalAudioCtx = ctx
		audioCtxReady = true
		log.Println("Audio context initialized successfully")
	})
}

// LoadChime builds the chime from a WAV file, or a synthesized tone when
// path is empty or unreadable.
func LoadChime(path string) *Chime {
	if path != "" {
		if wavData, err := os.ReadFile(path); err == nil {
			if format, data, err := parseWAV(wavData); err == nil {
				return &Chime{format: format, data: data}
			} else {
				log.Printf("Failed to parse WAV file %s: %v", path, err)
			}
		} else {
			log.Printf("Failed to read chime file %s: %v", path, err)
		}
	}

	format, data := synthesizeTone()
	return &Chime{format: format, data: data}
}

// Play starts one playback and returns without waiting. Failures only
// cost the audible cue; the visible alert already went out.
func (c *Chime) Play() {
	initAudioContext(c.format)

	if !audioCtxReady || globalAudioCtx == nil {
		return
	}

	player := globalAudioCtx.NewPlayer(bytes.NewReader(c.data))
	player.Play()

	go func() {
		for player.IsPlaying() {
			time.Sleep(10 * time.Millisecond)
		}
		if err := player.Close(); err != nil {
			log.Printf("Failed to close audio player: %v", err)
		}
	}()
}

// synthesizeTone generates a short two-note chime (A5 then E5) as 16-bit
// mono PCM, so no sound asset needs to ship with the binary.
func synthesizeTone() (*wavFormat, []byte) {
	const (
		sampleRate = 44100
		noteLen    = 0.18 // seconds per note
	)
	notes := []float64{880.0, 659.25}

	samplesPerNote := int(sampleRate * noteLen)
	buf := &bytes.Buffer{}

	for _, freq := range notes {
		for i := 0; i < samplesPerNote; i++ {
			t := float64(i) / sampleRate
			// Linear decay envelope keeps the notes from clicking.
			envelope := 1.0 - float64(i)/float64(samplesPerNote)
			sample := math.Sin(2*math.Pi*freq*t) * envelope * 0.4
			binary.Write(buf, binary.LittleEndian, int16(sample*math.MaxInt16))
		}
	}

	return &wavFormat{SampleRate: sampleRate, Channels: 1, BitDepth: 16}, buf.Bytes()
}

// parseWAV parses a WAV file and returns the format and audio data
func parseWAV(data []byte) (*wavFormat, []byte, error) {
	reader := bytes.NewReader(data)

	// Read RIFF header
	riff := make([]byte, 4)
	if _, err := reader.Read(riff); err != nil {
		return nil, nil, err
	}

	// Skip file size
	reader.Seek(4, io.SeekCurrent)

	// Read WAVE header
	wave := make([]byte, 4)
	if _, err := reader.Read(wave); err != nil {
		return nil, nil, err
	}

	format := &wavFormat{}
	var dataStart int64
	var dataSize uint32

	// Read chunks
	for {
		chunkID := make([]byte, 4)
		if _, err := reader.Read(chunkID); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, err
		}

		var chunkSize uint32
		if err := binary.Read(reader, binary.LittleEndian, &chunkSize); err != nil {
			return nil, nil, err
		}

		switch string(chunkID) {
		case "fmt ":
			var audioFormat uint16
			binary.Read(reader, binary.LittleEndian, &audioFormat)

			var numChannels uint16
			binary.Read(reader, binary.LittleEndian, &numChannels)
			format.Channels = int(numChannels)

			var sampleRate uint32
			binary.Read(reader, binary.LittleEndian, &sampleRate)
			format.SampleRate = int(sampleRate)

			// Skip byte rate and block align
			reader.Seek(6, io.SeekCurrent)

			var bitsPerSample uint16
			binary.Read(reader, binary.LittleEndian, &bitsPerSample)
			format.BitDepth = int(bitsPerSample)

			// Skip any extra format bytes
			if remaining := chunkSize - 16; remaining > 0 {
				reader.Seek(int64(remaining), io.SeekCurrent)
			}
		case "data":
			dataStart, _ = reader.Seek(0, io.SeekCurrent)
			dataSize = chunkSize
		default:
			reader.Seek(int64(chunkSize), io.SeekCurrent)
		}

		if dataSize > 0 {
			break
		}
	}

	audioData := make([]byte, dataSize)
	reader.Seek(dataStart, io.SeekStart)
	reader.Read(audioData)

	return format, audioData, nil
}
