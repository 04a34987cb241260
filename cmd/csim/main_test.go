package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/cache"
)

// yiTrace is a short lackey trace with an instruction line, a modify and a
// malformed record.
const yiTrace = `I  0400d7d4,8
 L 10,1
 M 20,1
 L 22,1
 S 18,1
 L 110,1
 L 210,1
 M 12,1
 L zz,1
`

var _ = Describe("csim", func() {
	var (
		dir       string
		tracePath string
		stdout    *bytes.Buffer
		stderr    *bytes.Buffer
	)

	execute := func(args ...string) error {
		cmd := newRootCommand(stdout, stderr)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		tracePath = filepath.Join(dir, "yi.trace")
		Expect(os.WriteFile(tracePath, []byte(yiTrace), 0644)).To(Succeed())

		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	It("should print the summary for flag arguments", func() {
		Expect(execute("-s", "1", "-E", "1", "-b", "1", "-t", tracePath)).To(Succeed())
		Expect(stdout.String()).To(Equal("hits:2 misses:7 evictions:5\n"))
	})

	It("should accept positional arguments", func() {
		Expect(execute("1", "1", "1", tracePath)).To(Succeed())
		Expect(stdout.String()).To(Equal("hits:2 misses:7 evictions:5\n"))
	})

	It("should give the same result with the akita engine", func() {
		Expect(execute("--engine", "akita", "1", "1", "1", tracePath)).To(Succeed())
		Expect(stdout.String()).To(Equal("hits:2 misses:7 evictions:5\n"))
	})

	It("should warn about malformed records", func() {
		Expect(execute("1", "1", "1", tracePath)).To(Succeed())
		Expect(stderr.String()).To(ContainSubstring("skipping malformed trace record"))
		Expect(stderr.String()).To(ContainSubstring("line=9"))
	})

	It("should print every access when verbose", func() {
		Expect(execute("-v", "4", "1", "4", tracePath)).To(Succeed())

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		Expect(lines).To(HaveLen(10))
		Expect(lines[0]).To(Equal("L 10,1 set=1 tag=0x0 miss"))
		Expect(lines[1]).To(Equal("M 20,1 set=2 tag=0x0 miss"))
		Expect(lines[2]).To(Equal("M 20,1 set=2 tag=0x0 hit"))
		Expect(lines[9]).To(Equal("hits:4 misses:5 evictions:3"))
	})

	It("should print JSON", func() {
		Expect(execute("--json", "4", "1", "4", tracePath)).To(Succeed())

		var decoded map[string]any
		Expect(json.Unmarshal(stdout.Bytes(), &decoded)).To(Succeed())
		Expect(decoded).To(HaveKeyWithValue("malformed", BeNumerically("==", 1)))
		Expect(decoded).To(HaveKeyWithValue("skipped", BeNumerically("==", 1)))
	})

	It("should print a report", func() {
		Expect(execute("--report", "4", "1", "4", tracePath)).To(Succeed())
		Expect(stdout.String()).To(ContainSubstring("Records:   7 (L 4, S 1, M 2, I 0)"))
	})

	It("should write a CSV access log", func() {
		logPath := filepath.Join(dir, "accesses.csv")
		Expect(execute("--access-log", logPath, "4", "1", "4", tracePath)).To(Succeed())

		data, err := os.ReadFile(logPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Count(string(data), "\n")).To(Equal(10))
	})

	It("should read the geometry from a config file", func() {
		configPath := filepath.Join(dir, "run.yaml")
		Expect(os.WriteFile(configPath, []byte(
			"set_index_bits: 1\n"+
				"lines_per_set: 1\n"+
				"block_offset_bits: 1\n"+
				"trace_file: "+tracePath+"\n"), 0644)).To(Succeed())

		Expect(execute("-c", configPath)).To(Succeed())
		Expect(stdout.String()).To(Equal("hits:2 misses:7 evictions:5\n"))
	})

	It("should let flags override the config file", func() {
		configPath := filepath.Join(dir, "run.json")
		Expect(os.WriteFile(configPath, []byte(
			`{"set_index_bits": 4, "lines_per_set": 1, "block_offset_bits": 4}`), 0644)).To(Succeed())

		Expect(execute("-c", configPath, "-s", "1", "-b", "1", "-t", tracePath)).To(Succeed())
		Expect(stdout.String()).To(Equal("hits:2 misses:7 evictions:5\n"))
	})

	It("should reject zero associativity before reading the trace", func() {
		err := execute("1", "0", "1", filepath.Join(dir, "missing.trace"))
		Expect(err).To(MatchError(cache.ErrInvalidGeometry))
	})

	It("should fail when the trace cannot be opened", func() {
		err := execute("1", "1", "1", filepath.Join(dir, "missing.trace"))
		Expect(err).To(MatchError(os.ErrNotExist))
		Expect(stdout.String()).To(BeEmpty())
	})

	It("should require a trace", func() {
		Expect(execute("-s", "1")).To(MatchError("no trace file given"))
	})

	It("should reject a partial positional argument list", func() {
		Expect(execute("1", "1")).To(HaveOccurred())
	})

	It("should reject non-numeric positional geometry", func() {
		Expect(execute("x", "1", "1", tracePath)).To(MatchError(ContainSubstring("invalid set bits")))
	})
})
