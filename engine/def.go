package engine

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003
const BUSY = 0x0004

// 同义词集编号形如 n01440764
const synsetLen = 9

type ClassInfo struct {
	Synset string
	Desc   string
}

func ReadLinesReadFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// 支持 Windows CRLF，去掉尾部的 '\r'
	raw := strings.Split(string(b), "\n")
	var lines []string
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func isSynset(s string) bool {
	if len(s) != synsetLen || s[0] != 'n' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseClassLine 解析一行标签：“n01440764 tench, Tinca tinca” 或纯描述
func ParseClassLine(line string, index int) ClassInfo {
	if len(line) > synsetLen+1 && line[synsetLen] == ' ' && isSynset(line[:synsetLen]) {
		return ClassInfo{Synset: line[:synsetLen], Desc: strings.TrimSpace(line[synsetLen+1:])}
	}
	return ClassInfo{Synset: fmt.Sprintf("n%08d", index), Desc: strings.TrimSpace(line)}
}

func LoadClassInfo(path string) ([]ClassInfo, error) {
	lines, err := ReadLinesReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class labels %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, errors.New("class label file " + path + " is empty")
	}
	classes := make([]ClassInfo, len(lines))
	for i, l := range lines {
		classes[i] = ParseClassLine(l, i)
	}
	return classes, nil
}
