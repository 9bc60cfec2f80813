package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"recitation-gateway/internal/analysis"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

func main() {
	audioFile := flag.String("audio", "testdata/recitation.wav", "Path to WAV recording of the recitation")
	serverURL := flag.String("server", "http://localhost:8787", "Gateway base URL")
	provider := flag.String("provider", "openai", "Transcription provider: openai or assemblyai")
	expected := flag.String("expected", "", "Original verse text to compare the recitation against")
	flag.Parse()

	if *provider != "openai" && *provider != "assemblyai" {
		log.Fatalf("Unknown provider %q, want openai or assemblyai", *provider)
	}

	audio, err := readWAV(*audioFile)
	if err != nil {
		log.Fatalf("Failed to read audio file: %v", err)
	}

	httpClient := &http.Client{Timeout: 120 * time.Second}

	log.Printf("Transcribing %s via %s (%d bytes)", *audioFile, *provider, len(audio))
	start := time.Now()
	transcript, confidence, err := transcribe(httpClient, *serverURL, *provider, audio)
	if err != nil {
		log.Fatalf("Transcription failed: %v", err)
	}
	log.Printf("Transcript (%.1fs): %s", time.Since(start).Seconds(), transcript)
	if confidence > 0 {
		log.Printf("Confidence: %.2f", confidence)
	}

	if *expected == "" {
		return
	}

	log.Println("Requesting comparison analysis...")
	content, err := compare(httpClient, *serverURL, *expected, transcript)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	report := analysis.ParseReport(content)
	if report.Transliteration != "" {
		log.Printf("Transliteration: %s", report.Transliteration)
	}
	if report.Translation != "" {
		log.Printf("Translation: %s", report.Translation)
	}
	if report.Comparison != "" {
		log.Printf("Comparison: %s", report.Comparison)
	}

	score := report.Score
	if !score.Parsed {
		// No usable score in the analysis; fall back to local string
		// similarity against the original verse.
		score = analysis.ScoreWithFallback(content, *expected, transcript)
	}
	log.Printf("Similarity score: %.2f (method=%s, parsed=%v)", score.Value, score.Method, score.Parsed)
}

// readWAV loads a WAV file, validating the RIFF header and PCM format.
func readWAV(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("file too short for a WAV header (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(data[20:22])
	numChannels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		return nil, fmt.Errorf("only PCM format supported, got format %d", audioFormat)
	}
	return data, nil
}

// transcribe posts the audio as a multipart form to the chosen provider route.
func transcribe(client *http.Client, baseURL, provider string, audio []byte) (string, float64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", 0, err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", 0, err
	}
	mw.Close()

	url := baseURL + "/api/" + provider + "/transcribe"
	resp, err := client.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, gatewayError(body))
	}

	// AssemblyAI answers JSON with a confidence; OpenAI answers plain text.
	if provider == "assemblyai" {
		var out struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return "", 0, fmt.Errorf("unexpected response: %s", body)
		}
		return out.Text, out.Confidence, nil
	}
	return string(body), 0, nil
}

// compare asks the gateway's comparison route to analyse the recitation
// against the original verse and returns the model's analysis text.
func compare(client *http.Client, baseURL, expected, actual string) (string, error) {
	prompt := fmt.Sprintf(
		"Original verse: %s\nRecited text: %s\n"+
			"Provide a Transliteration, a Translation, a Comparison of meaning, "+
			"and a Similarity Score from 0 to 100.",
		expected, actual)

	payload, err := json.Marshal(map[string]any{
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(baseURL+"/api/openai/compare", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, gatewayError(body))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out.Choices) == 0 {
		return "", fmt.Errorf("unexpected response: %s", body)
	}
	return out.Choices[0].Message.Content, nil
}

func gatewayError(body []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return string(body)
}
