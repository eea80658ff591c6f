package diyredis

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/sparsebitd/sparsebitd/bitset"

	crc64 "github.com/sparsebitd/sparsebitd/app/diyredis/crc64"

	lzf "github.com/zhuyie/golzf"
)

const (
	opCodeModuleAux    byte = 247 // Module auxiliary data
	opCodeIdle         byte = 248 // LRU idle time
	opCodeFreq         byte = 249 // LFU frequency
	opCodeAux          byte = 250 // Auxiliary field
	opCodeResizeDB     byte = 251 // Hash table resize hint
	opCodeExpireTimeMs byte = 252 // Expire time in milliseconds
	opCodeExpireTimeS  byte = 253 // Expiry time in seconds
	opCodeSelectDB     byte = 254 // DB number of the following keys
	opCodeEOF          byte = 255 // EOF
)

const (
	stringEnc             byte = 0  // String encoding
	listEnc               byte = 1  // List encoding
	setEnc                byte = 2  // Set encoding
	sortedSetEnc          byte = 3  // Sorted set encoding
	hashEnc               byte = 4  // Hash encoding
	zipmapEnc             byte = 9  // Zipmap encoding
	ziplistEnc            byte = 10 // Ziplist encoding
	intsetEnc             byte = 11 // Intset encoding
	sortedSetInZiplistEnc byte = 12 // Sorted set in ziplist encoding
	hashmapInZiplistEnc   byte = 13 // Hashmap in ziplist encoding
	listInQuicklistEnc    byte = 14 // List in quicklist encoding

	// bitsetEnc is our own value-type opcode, in the module-defined range
	// Redis reserves past its builtin encodings; its payload is a
	// length-encoded byte count followed by a bitset.Handle.Serialize stream.
	bitsetEnc byte = 200
)

// Special Format Object
const (
	redisInt8          int = 0
	redisInt16         int = 1
	redisInt32         int = 2
	redisCompressedStr int = 3
)

func (s *Server) LoadRdb() error {
	if s.RdbDir == "" || s.RdbFilename == "" {
		return nil
	}
	log.Println("Loading RDB file ", s.RdbDir, "/", s.RdbFilename, "...")

	filename := s.RdbDir + "/" + s.RdbFilename
	err := rdbPreFlight(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // if not exist; do nothing
		}
		return err
	}

	// Create buffered reader
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()
	reader := bufio.NewReader(file)
	reader.Discard(5) // already checked by rdbPreFlight()

	// Check RDB version number
	versionNr := make([]byte, 4)
	reader.Read(versionNr)

	// Parse auxiliary fields
	parseAuxFields(reader)

	// Load all key value pairs into the appropriate db
	err = s.loadDatabases(reader)
	if err != nil {
		return err
	}

	return nil
}

// Sanity check magic bytes. The CRC checksum code below is not reached: the
// function returns right after the magic-byte check.
func rdbPreFlight(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 4096)
	lastBytesRead, err := f.Read(buf)
	if err != nil {
		return err
	}

	// Sanity check; is RDB file?
	for i, r := range []byte("REDIS") {
		if buf[i] != r {
			return errors.New("not a Redis RDB file")
		}
	}

	// TODO remove after cc tests
	return nil

	// Sanity check; CRC OK?
	hash := crc64.New()
	_, err = hash.Write(buf[:lastBytesRead-8])
	if err != nil {
		return err
	}
	for {
		bytesRead, err := f.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			} else {
				return err
			}
		}
		_, err = hash.Write(buf[:bytesRead])
		if err != nil {
			return err
		}
		lastBytesRead = bytesRead
	}

	// TODO pre v5 or something crc did not exist in the rdb format so there won't be any zeroes there either
	reportedCRC := binary.LittleEndian.Uint64(buf[lastBytesRead-8 : lastBytesRead])

	hashy := crc64.New()
	_, _ = hashy.Write([]byte("123456789"))

	if reportedCRC == 0 {
		log.Println("skipping CRC validation: checksum not in RDB file")
		return nil
	}

	if hash.Sum64() != reportedCRC {
		return errors.New("CRC checksum incorrect")
	}
	return nil
}

// Parse all auxiliary fields found in succession of one another
func parseAuxFields(r *bufio.Reader) error {
	for {
		opCode, err := r.ReadByte()
		if err != nil {
			return err
		}

		if opCode == opCodeAux {
			key, _, _ := readStringEnc(r) // aux should always be string keys & vals
			fmt.Println(key)
			value, _, _ := readStringEnc(r)
			fmt.Println(value)
		} else {
			err := r.UnreadByte()
			if err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (s *Server) loadDatabases(r *bufio.Reader) error {
	var currentDB RedisDB

	for {
		opCode, err := r.ReadByte()
		fmt.Println(opCode, err)
		if err != nil {
			return err
		}

		switch opCode {
		case opCodeEOF:
			return nil
		case opCodeSelectDB:
			dbid, specialfmt, err := readLengthEnc(r)
			if err != nil {
				return err
			}
			if specialfmt {
				return errors.New("wrong select db encoding found")
			}
			if dbid >= len(s.dbs) {
				return errors.New("rdb file contains a database id too large")
			}
			currentDB = s.dbs[dbid]
			fmt.Println("db selected")

		case opCodeResizeDB:
			tableSize, specialfmt, err := readLengthEnc(r)
			if err != nil {
				return err
			}
			if specialfmt {
				return errors.New("wrong resize db encoding found")
			}

			expiryTableSize, specialfmt, err := readLengthEnc(r)
			if err != nil {
				return err
			}
			if specialfmt {
				return errors.New("wrong resize db encoding found")
			}
			fmt.Println("resizedb: ")
			fmt.Println(tableSize, expiryTableSize)
			// TODO use these numbers to resize the hashtables of the current db

		case opCodeExpireTimeS:
			buf := make([]byte, 4)
			_, err := r.Read(buf)
			if err != nil {
				return err
			}
			expiry := time.Unix(int64(binary.LittleEndian.Uint32(buf)), 0)
			loadKeyVal(r, currentDB, expiry)

		case opCodeExpireTimeMs:
			buf := make([]byte, 8)
			_, err := r.Read(buf)
			if err != nil {
				return err
			}
			expiry := time.UnixMilli(int64(binary.LittleEndian.Uint64(buf)))
			loadKeyVal(r, currentDB, expiry)

		default:
			// no op code -> normal key-value pair
			if err := r.UnreadByte(); err != nil {
				return err
			}
			loadKeyVal(r, currentDB, time.Time{})
		}
	}
}

func loadKeyVal(r *bufio.Reader, db RedisDB, expiry time.Time) error {
	valueType, err := r.ReadByte()
	if err != nil {
		return err
	}

	fmt.Println("loading key value pair")

	keyStr, keyInt, err := readStringEnc(r) // key is always string-encoded
	if err != nil {
		return err
	}
	var key any
	if keyStr == "" {
		key = keyInt
	} else {
		key = keyStr
	}

	var value any
	switch valueType {
	case stringEnc:
		valueStr, valueInt, err := readStringEnc(r)
		if err != nil {
			return err
		}
		if valueStr == "" {
			value = strconv.Itoa(int(valueInt))
		} else {
			value = valueStr
		}
	case bitsetEnc:
		n, specialfmt, err := readLengthEnc(r)
		if err != nil {
			return err
		}
		if specialfmt {
			return errors.New("wrong bitset length encoding found")
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		h, err := bitset.Deserialize(bytes.NewReader(buf))
		if err != nil {
			return err
		}
		value = h

	default:
		return errors.New("value type encoding not yet implemented")
	}

	if !expiry.IsZero() {
		db.expiryDB.Store(key, expiry)
	}
	db.valueDB.Store(key, value)
	return nil
}

// SaveRdb writes the current keyspace of every database to s.RdbDir/s.RdbFilename
// in the same RDB-compatible framing LoadRdb reads: magic + version, an aux
// field, one SELECTDB/key-value run per non-empty database, the EOF opcode,
// and a trailing CRC-64/Jones checksum over everything preceding it.
func (s *Server) SaveRdb() error {
	if s.RdbDir == "" || s.RdbFilename == "" {
		return nil
	}
	filename := s.RdbDir + "/" + s.RdbFilename
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	hash := crc64.New()
	w := io.MultiWriter(f, hash)

	if _, err := w.Write([]byte("REDIS0011")); err != nil {
		return err
	}
	if err := writeAuxField(w, "redis-ver", "sparsebitd"); err != nil {
		return err
	}

	for dbid, db := range s.dbs {
		empty := true
		db.valueDB.Range(func(_, _ any) bool { empty = false; return false })
		if empty {
			continue
		}
		if _, err := w.Write([]byte{opCodeSelectDB}); err != nil {
			return err
		}
		if err := writeLengthEnc(w, dbid); err != nil {
			return err
		}

		var saveErr error
		db.valueDB.Range(func(k, v any) bool {
			key, _ := k.(string)
			if expiry, ok := db.expiryDB.Load(key); ok {
				ms := expiry.(time.Time).UnixMilli()
				if _, err := w.Write([]byte{opCodeExpireTimeMs}); err != nil {
					saveErr = err
					return false
				}
				buf := make([]byte, 8)
				binary.LittleEndian.PutUint64(buf, uint64(ms))
				if _, err := w.Write(buf); err != nil {
					saveErr = err
					return false
				}
			}
			if err := writeKeyVal(w, key, v); err != nil {
				saveErr = err
				return false
			}
			return true
		})
		if saveErr != nil {
			return saveErr
		}
	}

	if _, err := w.Write([]byte{opCodeEOF}); err != nil {
		return err
	}

	checksum := make([]byte, 8)
	binary.LittleEndian.PutUint64(checksum, hash.Sum64())
	if _, err := f.Write(checksum); err != nil {
		return err
	}
	return nil
}

func writeAuxField(w io.Writer, key, val string) error {
	if _, err := w.Write([]byte{opCodeAux}); err != nil {
		return err
	}
	if err := writeStringEnc(w, key); err != nil {
		return err
	}
	return writeStringEnc(w, val)
}

func writeKeyVal(w io.Writer, key string, v any) error {
	switch val := v.(type) {
	case string:
		if _, err := w.Write([]byte{stringEnc}); err != nil {
			return err
		}
		if err := writeStringEnc(w, key); err != nil {
			return err
		}
		return writeStringEnc(w, val)

	case *bitset.Handle:
		var buf bytes.Buffer
		if err := val.Serialize(&buf); err != nil {
			return err
		}
		if _, err := w.Write([]byte{bitsetEnc}); err != nil {
			return err
		}
		if err := writeStringEnc(w, key); err != nil {
			return err
		}
		if err := writeLengthEnc(w, buf.Len()); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err

	default:
		return fmt.Errorf("cannot save value of type %T to rdb", v)
	}
}

func writeStringEnc(w io.Writer, s string) error {
	if err := writeLengthEnc(w, len(s)); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// writeLengthEnc is the inverse of readLengthEnc, always choosing the
// smallest of the three plain-length encodings that fits.
func writeLengthEnc(w io.Writer, n int) error {
	switch {
	case n < 1<<6:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n < 1<<14:
		_, err := w.Write([]byte{byte(1<<6) | byte(n>>8), byte(n)})
		return err
	default:
		buf := make([]byte, 5)
		buf[0] = byte(2 << 6)
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf)
		return err
	}
}

// Returns either string or uint, the other return value being its natural null value.
func readStringEnc(r *bufio.Reader) (string, uint, error) {
	length, specialfmt, err := readLengthEnc(r)
	if err != nil {
		return "", 0, err
	}

	if specialfmt {
		switch length {
		case redisInt8:
			val, err := r.ReadByte()
			if err != nil {
				return "", 0, err
			}
			return "", uint(val), nil

		case redisInt16:
			buf := make([]byte, 2)
			_, err := r.Read(buf)
			if err != nil {
				return "", 0, err
			}
			return "", uint(binary.LittleEndian.Uint16(buf)), nil

		case redisInt32:
			buf := make([]byte, 4)
			_, err := r.Read(buf)
			if err != nil {
				return "", 0, err
			}
			return "", uint(binary.LittleEndian.Uint32(buf)), nil

		case redisCompressedStr:
			res, err := readCompressedStr(r)
			if err != nil {
				return "", 0, err
			}
			return res, 0, nil
		}
	}

	buf := make([]byte, length)
	_, err = r.Read(buf)
	if err != nil {
		return "", 0, err
	}
	return string(buf), 0, nil

}

func readCompressedStr(r *bufio.Reader) (string, error) {
	compressedLen, specialfmt, err := readLengthEnc(r)
	if specialfmt || err != nil {
		return "", errors.New("invalid compressed string encoding")
	}
	uncompressedLen, specialfmt, err := readLengthEnc(r)
	if specialfmt || err != nil {
		return "", errors.New("invalid compressed string encoding")
	}

	buf := make([]byte, compressedLen)
	_, err = r.Read(buf)
	if err != nil {
		return "", err
	}

	outputBuf := make([]byte, uncompressedLen)
	lzf.Decompress(buf, outputBuf)
	return string(outputBuf), nil
}

// Parse Redis' length encoding, returning either the length or the 'special format'
// of the next object in case the returning boolean is true.
func readLengthEnc(r *bufio.Reader) (int, bool, error) {
	firstByte, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}

	switch msb := firstByte >> 6; msb {
	case 0: // 6 bits in this byje
		return int(firstByte & 63), false, nil

	case 1: // 6 bits in this byte + next byte, big-endian
		nextByte, err := r.ReadByte()
		if err != nil {
			return 0, false, err
		}

		length := uint16(firstByte&63)<<8 | uint16(nextByte)
		return int(length), false, nil

	case 2: // discard this byte, read next 4 bytes
		lenbuf := make([]byte, 4)
		_, err := r.Read(lenbuf)
		if err != nil {
			return 0, false, err
		}

		length := binary.BigEndian.Uint32(lenbuf)
		return int(length), false, nil

	case 3: // special format
		return int(firstByte & 63), true, nil
	}

	return 0, false, errors.New("invalid string encoding found")
}
