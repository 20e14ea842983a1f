package service

// bytesToSamples reinterprets little-endian byte pairs as 16-bit PCM
// samples. A trailing odd byte is dropped.
func bytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return samples
}

// samplesToBytes is the inverse of bytesToSamples.
func samplesToBytes(samples []int16) []byte {
	pcm := make([]byte, 2*len(samples))
	for i, s := range samples {
		pcm[2*i] = byte(uint16(s))
		pcm[2*i+1] = byte(uint16(s) >> 8)
	}
	return pcm
}
