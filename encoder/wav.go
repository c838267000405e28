package encoder

import "encoding/binary"

const wavHeaderSize = 44

type WavEncoder struct{}

func NewWav() *WavEncoder { return &WavEncoder{} }

func (*WavEncoder) Ext() string { return "wav" }

func (*WavEncoder) Encode(samples []int16) ([]byte, error) {
	dataSize := len(samples) * 2
	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], SampleRate*Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[32:34], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(s))
	}
	return buf, nil
}
