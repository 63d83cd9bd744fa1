// Package scpi provides primitives for working with devices that
// have SCPI interfaces reachable through a usbtmc.Session.
package scpi

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/nasa-jpl/usbtmcd/usbtmc"
)

// respBufSize bounds a single WriteRead response; SCPI replies are
// short ASCII lines, so this comfortably covers them without forcing
// every caller to size a buffer themselves.
const respBufSize = 1500

// SCPI encapsulates SCPI communication over a usbtmc.Session.
type SCPI struct {
	Sess *usbtmc.Session

	// Handshaking indicates if the communication shall use handshaking,
	// where an error query is sent with every message
	// to ensure the device accepted the input
	// it is assumed this is used for set operations and not get.
	Handshaking bool
}

// Write sends a command to the device.  If s.Handshaking, it also
// requests an error response and checks that it is OK.
func (s *SCPI) Write(cmds ...string) error {
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	str := strings.Join(cmds, " ") + "\n"
	if _, err := s.Sess.Write([]byte(str)); err != nil {
		return err
	}
	if !s.Handshaking {
		return nil
	}
	buf := make([]byte, respBufSize)
	n, err := s.Sess.Read(buf)
	if err != nil {
		return err
	}
	resp := string(buf[:n])
	if len(resp) < 2 || resp[0:2] != "+0" {
		return fmt.Errorf(resp)
	}
	return nil
}

// WriteRead is Write, followed by a read of the response; it is
// assumed that "get" calls use this underlying mechanism.
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	if s.Handshaking {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	str := strings.Join(cmds, " ") + "\n"
	if _, err := s.Sess.Write([]byte(str)); err != nil {
		return nil, err
	}
	buf := make([]byte, respBufSize)
	n, err := s.Sess.Read(buf)
	if err != nil {
		return nil, err
	}
	resp := buf[:n]
	if !s.Handshaking {
		return resp, nil
	}
	pieces := bytes.Split(resp, []byte{';'})
	errS := string(pieces[len(pieces)-1])
	if len(errS) < 2 || errS[:2] != "+0" {
		return resp, fmt.Errorf(errS)
	}
	return bytes.Join(pieces[:len(pieces)-1], []byte{}), nil
}

// ReadString sends a command to the device, then reads the response
// and returns it as a decoded ASCII/UTF-8 string with any trailing
// CR/LF trimmed.
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	if err == nil && len(resp) > 0 {
		if resp[len(resp)-1] == '\n' {
			resp = resp[:len(resp)-1]
		}
		if len(resp) > 0 && resp[len(resp)-1] == '\r' {
			resp = resp[:len(resp)-1]
		}
	}
	return string(resp), err
}

// ReadFloat sends a command to the device, then reads the response and
// parses it as a floating point value.
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

// ReadBool sends a command to the device, then reads the response and
// parses it as a boolean.
func (s *SCPI) ReadBool(cmds ...string) (bool, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(resp)
}

// ReadInt sends a command to the device, then reads the response and
// parses it as an integer.
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(resp)
}

// Raw sends str to the instrument and, if it looks like a query,
// returns the response; otherwise returns a blank string.
func (s *SCPI) Raw(str string) (string, error) {
	prev := s.Handshaking
	s.Handshaking = false
	defer func() { s.Handshaking = prev }()
	if strings.Contains(str, "?") {
		return s.ReadString(str)
	}
	return "", s.Write(str)
}

// PopError pulls a single error off the instrument's error queue.
func (s *SCPI) PopError() error {
	str, err := s.ReadString("SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if len(str) >= 2 && str[0:2] == "+0" {
		return nil
	}
	return fmt.Errorf(str)
}

// AllErrors drains the instrument's error queue and returns every
// error found.
func (s *SCPI) AllErrors() []error {
	var errs []error
	for {
		err := s.PopError()
		if err == nil {
			break
		}
		errs = append(errs, err)
	}
	return errs
}

// AllErrorsString is AllErrors joined by newline. If there were no
// errors, the error return value is nil; otherwise it is the first
// error in the list.
func (s *SCPI) AllErrorsString() (string, error) {
	errs := s.AllErrors()
	if len(errs) == 0 {
		return "", nil
	}
	strs := make([]string, len(errs))
	for i := range errs {
		strs[i] = errs[i].Error()
	}
	return strings.Join(strs, "\n"), errs[0]
}
