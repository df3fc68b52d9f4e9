package database_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestEncode(t *testing.T) {
	type table struct {
		name      string
		prevHash  string
		data      []byte
		timestamp int64
		nonce     uint64
		exp       string
	}

	tt := []table{
		{
			name:      "basic",
			prevHash:  "abc",
			data:      []byte("hi"),
			timestamp: 5,
			nonce:     7,
			exp:       `{"previous_hash":"abc","data":[104,105],"timestamp":5,"nonce":7}`,
		},
		{
			name:      "empty-payload",
			prevHash:  "genesis",
			data:      nil,
			timestamp: 1640995200,
			nonce:     86014,
			exp:       `{"previous_hash":"genesis","data":[],"timestamp":1640995200,"nonce":86014}`,
		},
		{
			name:      "no-html-escaping",
			prevHash:  "<a&b>",
			data:      []byte{0, 255},
			timestamp: -1,
			nonce:     18446744073709551615,
			exp:       `{"previous_hash":"<a&b>","data":[0,255],"timestamp":-1,"nonce":18446744073709551615}`,
		},
		{
			name:      "line-separators",
			prevHash:  "a\u2028b\u2029c",
			data:      []byte{},
			timestamp: 0,
			nonce:     0,
			exp:       `{"previous_hash":"a\u2028b\u2029c","data":[],"timestamp":0,"nonce":0}`,
		},
	}

	t.Log("Given the need to encode the hashable fields of a block.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s case.", testID, tst.name)
				{
					got, err := database.Encode(tst.prevHash, tst.data, tst.timestamp, tst.nonce)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to encode: %v", failed, testID, err)
					}

					if string(got) != tst.exp {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get back the canonical encoding.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the canonical encoding.", success, testID)

					again, _ := database.Encode(tst.prevHash, tst.data, tst.timestamp, tst.nonce)
					if string(again) != string(got) {
						t.Fatalf("\t%s\tTest %d:\tShould be deterministic.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be deterministic.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func TestEncodeInvalidUTF8(t *testing.T) {
	t.Log("Given the need to keep the encoding free of information loss.")
	{
		t.Log("\tTest 0:\tWhen the previous hash is not valid UTF-8.")
		{
			first, err := database.Encode("\xff", nil, 0, 0)
			if !errors.Is(err, database.ErrEncoding) || first != nil {
				t.Fatalf("\t%s\tTest 0:\tShould reject the previous hash, got %v.", failed, err)
			}
			if _, err := database.Encode("\xfe", nil, 0, 0); !errors.Is(err, database.ErrEncoding) {
				t.Fatalf("\t%s\tTest 0:\tShould reject the previous hash, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject the previous hash.", success)
		}

		t.Log("\tTest 1:\tWhen a block carries a previous hash that is not valid UTF-8.")
		{
			block := database.Block{Hash: "00", PrevHash: "\xff"}
			if _, err := block.ComputeHash(); !errors.Is(err, database.ErrEncoding) {
				t.Fatalf("\t%s\tTest 1:\tShould fail to compute the hash, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould fail to compute the hash.", success)
		}
	}
}

func TestPayloadJSON(t *testing.T) {
	t.Log("Given the need to move payloads in and out of JSON.")
	{
		t.Log("\tTest 0:\tWhen round tripping block data.")
		{
			bd := database.BlockData{Hash: "aa", PrevHash: "genesis", TimeStamp: 1, Data: database.Payload("hi"), Nonce: 2}

			data, err := json.Marshal(bd)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to marshal: %v", failed, err)
			}

			const exp = `{"hash":"aa","previous_hash":"genesis","timestamp":1,"data":[104,105],"nonce":2}`
			if string(data) != exp {
				t.Logf("\t%s\tTest 0:\tgot: %s", failed, data)
				t.Logf("\t%s\tTest 0:\texp: %s", failed, exp)
				t.Fatalf("\t%s\tTest 0:\tShould encode the payload as byte values.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould encode the payload as byte values.", success)

			var got database.BlockData
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to unmarshal: %v", failed, err)
			}
			if string(got.Data) != "hi" {
				t.Fatalf("\t%s\tTest 0:\tShould get back the payload, got %q.", failed, got.Data)
			}
			t.Logf("\t%s\tTest 0:\tShould get back the payload.", success)
		}

		t.Log("\tTest 1:\tWhen decoding values that are not bytes.")
		{
			for _, s := range []string{`[256]`, `[-1]`, `"aGk="`} {
				var p database.Payload
				if err := json.Unmarshal([]byte(s), &p); err == nil {
					t.Fatalf("\t%s\tTest 1:\tShould reject %s.", failed, s)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould reject values that are not bytes.", success)
		}
	}
}
