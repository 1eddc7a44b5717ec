package indexcache

import "testing"

func TestValueRoundtrip(t *testing.T) {
	v := encodeValue([]byte("v1"), []byte(`{"a":1}`))
	dec, ok := decodeValue(v)
	if !ok {
		t.Fatalf("decode failed")
	}
	if string(dec.Header) != "v1" || string(dec.Payload) != `{"a":1}` {
		t.Fatalf("decoded %q %q", dec.Header, dec.Payload)
	}
}

func TestValueCRCFail(t *testing.T) {
	v := encodeValue([]byte("v1"), []byte("y"))
	v[len(v)-1] ^= 0xFF
	if _, ok := decodeValue(v); ok {
		t.Fatalf("expected crc failure")
	}
	if _, ok := decodeValue([]byte{1}); ok {
		t.Fatalf("expected short value failure")
	}
}
