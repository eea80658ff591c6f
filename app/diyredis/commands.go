package diyredis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sparsebitd/sparsebitd/bitset"

	resp3 "github.com/sparsebitd/sparsebitd/app/diyredis/resp3"
)

// Session is a single client connection's command loop and its currently
// selected database.
type Session struct {
	server   *Server
	conn     net.Conn
	dbIndex  int
	valueDB  *sync.Map
	expiryDB *sync.Map
	log      *log.Logger
	enc      resp3.Encoder
}

func (s *Session) SwitchDB(id int) error {
	if id < 0 || id >= len(s.server.dbs) {
		return errors.New("database does not exist")
	}
	s.dbIndex = id
	s.valueDB = s.server.dbs[id].valueDB
	s.expiryDB = s.server.dbs[id].expiryDB
	return nil
}

func (s *Session) HandleCommands() {
	reader := bufio.NewReader(s.conn)
	for {
		cmd, err := ParseCommand(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			s.log.Println("error parsing RESP command:", err.Error())
			s.conn.Write([]byte("-ERR Protocol error: " + err.Error() + "\r\n"))
			continue
		}
		if len(cmd) == 0 {
			continue
		}

		mainCmd := strings.ToLower(cmd[0])
		switch mainCmd {
		case "ping":
			s.doPING(cmd)
		case "echo":
			s.doECHO(cmd)
		case "set":
			s.doSET(cmd)
		case "get":
			s.doGET(cmd)
		case "del":
			s.doDEL(cmd)
		case "config":
			s.doCONFIG(cmd)
		case "keys":
			s.doKEYS(cmd)
		case "type":
			s.doTYPE(cmd)
		case "select":
			s.doSELECT(cmd)
		case "bits.insert":
			s.doBitsInsert(cmd)
		case "bits.remove":
			s.doBitsRemove(cmd)
		case "bits.get", "bits.contains":
			s.doBitsGet(cmd)
		case "bits.set":
			s.doBitsSet(cmd)
		case "bits.count":
			s.doBitsCount(cmd)
		case "bits.size":
			s.doBitsSize(cmd)
		case "bits.clear":
			s.doBitsClear(cmd)
		case "bits.min":
			s.doBitsMinMax(cmd, true)
		case "bits.max":
			s.doBitsMinMax(cmd, false)
		case "bits.successor":
			s.doBitsNeighbor(cmd, true)
		case "bits.predecessor":
			s.doBitsNeighbor(cmd, false)
		case "bits.toarray":
			s.doBitsToArray(cmd)
		case "bits.pos":
			s.doBitsPos(cmd)
		case "bits.op":
			s.doBitsOp(cmd)
		case "bits.info":
			s.doBitsInfo(cmd)
		default:
			s.writeErrorf("ERR", "unknown command '%s'", cmd[0])
		}
	}
}

func (s *Session) flush() {
	s.conn.Write(s.enc.Buf)
	s.enc.Reset()
}

func (s *Session) writeError(errType, msg string) {
	s.enc.WriteError(errType, msg)
	s.flush()
}

func (s *Session) writeErrorf(errType, format string, a ...any) {
	s.enc.WriteError(errType, fmt.Sprintf(format, a...))
	s.flush()
}

func (s *Session) requireArgs(cmd []string, min int, name string) bool {
	if len(cmd) < min {
		s.writeErrorf("ERR", "wrong number of arguments for '%s' command", name)
		return false
	}
	return true
}

func (s *Session) doPING(cmd []string) {
	if len(cmd) > 1 {
		s.enc.WriteBulkStr(cmd[1])
	} else {
		s.enc.WriteSimpleStr("PONG")
	}
	s.flush()
}

func (s *Session) doECHO(cmd []string) {
	if !s.requireArgs(cmd, 2, "echo") {
		return
	}
	s.enc.WriteBulkStr(cmd[1])
	s.flush()
}

func (s *Session) doSET(cmd []string) {
	if !s.requireArgs(cmd, 3, "set") {
		return
	}
	// Race between the expiry map and the value map is a known, accepted
	// sharp edge inherited from the teacher's own sync.Map-pair design.
	if len(cmd) > 3 && strings.EqualFold(cmd[3], "px") {
		if len(cmd) < 5 {
			s.writeError("ERR", "PX argument found without expiry")
			return
		}
		expiryInMs, err := strconv.Atoi(cmd[4])
		if err != nil {
			s.writeError("ERR", "value is not an integer or out of range")
			return
		}
		s.expiryDB.Store(cmd[1], time.Now().Add(time.Duration(expiryInMs)*time.Millisecond))
	} else {
		s.expiryDB.Delete(cmd[1])
	}
	s.valueDB.Store(cmd[1], cmd[2])
	s.enc.WriteSimpleStr("OK")
	s.flush()
}

// loadString fetches a string-valued key, honoring expiry, returning
// ok=false if absent/expired/wrong type (wrongType reported separately).
func (s *Session) loadString(key string) (val string, ok bool, wrongType bool) {
	v, found := s.valueDB.Load(key)
	if !found {
		return "", false, false
	}
	if expiry, has := s.expiryDB.Load(key); has && !expiry.(time.Time).After(time.Now()) {
		s.valueDB.Delete(key)
		s.expiryDB.Delete(key)
		return "", false, false
	}
	str, isStr := v.(string)
	if !isStr {
		return "", false, true
	}
	return str, true, false
}

func (s *Session) doGET(cmd []string) {
	if !s.requireArgs(cmd, 2, "get") {
		return
	}
	val, ok, wrongType := s.loadString(cmd[1])
	if wrongType {
		s.writeError("WRONGTYPE", bitset.ErrWrongType.Error())
		return
	}
	if !ok {
		s.enc.WriteNullBulk()
	} else {
		s.enc.WriteBulkStr(val)
	}
	s.flush()
}

func (s *Session) doDEL(cmd []string) {
	if !s.requireArgs(cmd, 2, "del") {
		return
	}
	n := 0
	for _, key := range cmd[1:] {
		if _, ok := s.valueDB.Load(key); ok {
			n++
		}
		s.valueDB.Delete(key)
		s.expiryDB.Delete(key)
	}
	s.enc.WriteInt(int64(n))
	s.flush()
}

func (s *Session) doCONFIG(cmd []string) {
	if !s.requireArgs(cmd, 3, "config") {
		return
	}
	if !strings.EqualFold(cmd[1], "get") {
		s.writeError("ERR", "only CONFIG GET is supported")
		return
	}
	switch cmd[2] {
	case "dir":
		s.enc.WriteArrHeader(2)
		s.enc.WriteBulkStr("dir")
		s.enc.WriteBulkStr(s.server.RdbDir)
	case "dbfilename":
		s.enc.WriteArrHeader(2)
		s.enc.WriteBulkStr("dbfilename")
		s.enc.WriteBulkStr(s.server.RdbFilename)
	default:
		s.enc.WriteArrHeader(0)
	}
	s.flush()
}

func (s *Session) doKEYS(cmd []string) {
	// only supports the "*" pattern, as in the teacher's own implementation
	var keys []string
	s.valueDB.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	s.conn.Write(makeRESPArr(keys))
}

func (s *Session) doTYPE(cmd []string) {
	if !s.requireArgs(cmd, 2, "type") {
		return
	}
	v, ok := s.valueDB.Load(cmd[1])
	if !ok {
		s.enc.WriteSimpleStr("none")
		s.flush()
		return
	}
	switch v.(type) {
	case *bitset.Handle:
		s.enc.WriteSimpleStr("bitset")
	case string:
		s.enc.WriteSimpleStr("string")
	default:
		s.enc.WriteSimpleStr("none")
	}
	s.flush()
}

func (s *Session) doSELECT(cmd []string) {
	if !s.requireArgs(cmd, 2, "select") {
		return
	}
	id, err := strconv.Atoi(cmd[1])
	if err != nil {
		s.writeError("ERR", "value is not an integer or out of range")
		return
	}
	if err := s.SwitchDB(id); err != nil {
		s.writeError("ERR", err.Error())
		return
	}
	s.enc.WriteSimpleStr("OK")
	s.flush()
}
