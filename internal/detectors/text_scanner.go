package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/paiml/probar-sub002/internal/core"
)

var (
	aliasDeclPattern = regexp.MustCompile(`^\s*(?:pub(?:\s*\([^)]*\))?\s+)?type\s+([A-Za-z_]\w*)\s*(?:<[^=]*>)?\s*=\s*([^;]+);`)
	fnDeclPattern    = regexp.MustCompile(`\bfn\s+([A-Za-z_]\w*)`)
	fnReturnPattern  = regexp.MustCompile(`\bfn\s+([A-Za-z_]\w*)[^{;]*\)\s*->\s*([^{;]+?)\s*(?:where\b|\{|;|$)`)
	letPattern       = regexp.MustCompile(`\blet\s+(?:mut\s+)?([A-Za-z_]\w*)\s*(?::[^=]+)?=\s*(.+)$`)
	receiverClone    = regexp.MustCompile(`^([A-Za-z_]\w*)\s*\.\s*clone\s*\(\s*\)`)
	selfCloneIdiom   = regexp.MustCompile(`\bself\s*\.\s*[A-Za-z_][\w.]*\s*\.\s*clone\s*\(\s*\)|::\s*clone\s*\(\s*&\s*self\s*\.`)
	assocCloneLocal  = regexp.MustCompile(`^(?:\w+::)*(\w+)::(?:::)?clone\(&(\w+)\)`)
)

// TextScanner 文本扫描（后备分析）
// 只依赖逐行启发式，树解析失败时兜底，也作为第二意见与树遍历结果合并
type TextScanner struct {
	*core.BaseDetector
}

// NewTextScanner 创建文本扫描器
func NewTextScanner() *TextScanner {
	return &TextScanner{
		BaseDetector: core.NewBaseDetector(
			"State Sync Text Scanner",
			"Line-oriented fallback that re-derives shared handle construction patterns from raw text",
		),
	}
}

// fnSpan 由花括号深度推断出的函数范围（0 基行号，含首尾）
type fnSpan struct {
	name  string
	start int
	end   int
}

// Run 运行扫描
func (s *TextScanner) Run(ctx *core.AnalysisContext) (*core.Report, error) {
	report := s.NewFileReport(ctx)
	scan := &textScan{
		det:    s,
		ctx:    ctx,
		report: report,
		opts:   ctx.Options,
		table:  core.NewSymbolTable(),
	}
	scan.lines = strings.Split(strings.ReplaceAll(string(ctx.Source), "\r\n", "\n"), "\n")
	scan.code = sanitizeLines(scan.lines)

	scan.collectSymbols()
	spans := scan.functionSpans()
	owner := make([]int, len(scan.code))
	for i := range owner {
		owner[i] = -1
	}
	// 后出现的范围更内层，覆盖外层
	for idx, sp := range spans {
		for l := sp.start; l <= sp.end && l < len(owner); l++ {
			owner[l] = idx
		}
	}
	for idx, sp := range spans {
		scan.scanFunction(sp, idx, owner)
	}
	return report, nil
}

// textScan 单文件扫描状态
type textScan struct {
	det    *TextScanner
	ctx    *core.AnalysisContext
	report *core.Report
	opts   core.Options
	table  *core.SymbolTable
	lines  []string
	code   []string
}

func (t *textScan) isHandleTypeName(name string) bool {
	return t.opts.IsHandleType(name) || t.table.IsAlias(name)
}

// collectSymbols 别名/辅助函数声明（与树遍历相同的最外层构造器规则）
func (t *textScan) collectSymbols() {
	type aliasDecl struct {
		name, target string
		line, col    int
	}
	var pending []aliasDecl
	for i, line := range t.code {
		if m := aliasDeclPattern.FindStringSubmatchIndex(line); m != nil {
			pending = append(pending, aliasDecl{
				name:   line[m[2]:m[3]],
				target: strings.TrimSpace(line[m[4]:m[5]]),
				line:   i + 1,
				col:    strings.Index(line, "type") + 1,
			})
		}
	}

	var found []*core.Symbol
	for round := 0; round < 2 && len(pending) > 0; round++ {
		var next []aliasDecl
		for _, a := range pending {
			if !t.isHandleTypeName(core.OuterTypeName(a.target)) {
				next = append(next, a)
				continue
			}
			sym := &core.Symbol{Name: a.name, Type: core.SymbolAlias, Line: a.line, Column: a.col, Signature: a.target}
			if t.table.AddSymbol(sym) {
				found = append(found, sym)
			}
		}
		pending = next
	}

	for i, line := range t.code {
		m := fnReturnPattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		ret := strings.TrimSpace(line[m[4]:m[5]])
		if !t.isHandleTypeName(core.OuterTypeName(ret)) {
			continue
		}
		sym := &core.Symbol{
			Name:      line[m[2]:m[3]],
			Type:      core.SymbolHelper,
			Line:      i + 1,
			Column:    m[0] + 1,
			Signature: ret,
		}
		if t.table.AddSymbol(sym) {
			found = append(found, sym)
		}
	}

	sortSymbolsByPosition(found)
	for _, sym := range found {
		t.report.Add(symbolFinding(t.ctx.FilePath, sym))
	}
}

// functionSpans 根据 `fn name` 签名行和花括号深度推断函数范围
func (t *textScan) functionSpans() []fnSpan {
	type frame struct {
		span  int
		depth int
	}
	var spans []fnSpan
	var stack []frame
	depth := 0
	pendingName := ""
	pendingLine := -1

	for i, line := range t.code {
		if m := fnDeclPattern.FindStringSubmatch(line); m != nil {
			pendingName = m[1]
			pendingLine = i
		}
		for j := 0; j < len(line); j++ {
			switch line[j] {
			case ';':
				// 没有函数体的签名（trait 方法声明）
				if pendingName != "" && !strings.Contains(line[:j], "{") && parenBalanced(t.code, pendingLine, i, j) {
					pendingName = ""
				}
			case '{':
				depth++
				if pendingName != "" {
					spans = append(spans, fnSpan{name: pendingName, start: pendingLine, end: len(t.code) - 1})
					stack = append(stack, frame{span: len(spans) - 1, depth: depth})
					pendingName = ""
				}
			case '}':
				depth--
				for len(stack) > 0 && depth < stack[len(stack)-1].depth {
					spans[stack[len(stack)-1].span].end = i
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
	return spans
}

// parenBalanced 签名从 fromLine 到 (toLine, col) 的圆括号是否已闭合
func parenBalanced(code []string, fromLine, toLine, col int) bool {
	depth := 0
	for l := fromLine; l <= toLine && l < len(code); l++ {
		line := code[l]
		if l == toLine && col <= len(line) {
			line = line[:col]
		}
		depth += strings.Count(line, "(") - strings.Count(line, ")")
	}
	return depth <= 0
}

// scanFunction 分析单个函数范围内属于它自己的行
func (t *textScan) scanFunction(sp fnSpan, idx int, owner []int) {
	closures := NewClosureContext(t.opts)
	closures.Enter(sp.name)

	var own []int
	for l := sp.start; l <= sp.end && l < len(t.code); l++ {
		if owner[l] == idx {
			own = append(own, l)
		}
	}

	if t.opts.ClosurePrescan && !closures.CreatesClosures() {
		for _, l := range own {
			if t.hasClosureToken(t.code[l]) {
				closures.MarkClosure()
				break
			}
		}
	}

	for _, l := range own {
		line := t.code[l]
		for _, field := range selfFields(line) {
			closures.NoteSelfField(field)
		}
		tokenAt := t.closureTokenIndex(line)
		if tokenAt >= 0 {
			closures.MarkClosure()
		}
		t.scanLet(closures, l)
		if tokenAt >= 0 {
			t.checkClosureCaptures(closures, sp, l, tokenAt)
		}
	}

	if !closures.CreatesClosures() {
		return
	}
	for _, h := range closures.Handles() {
		if h.Origin != OriginConstructed || !closures.UsesSelfField(h.Name) {
			continue
		}
		msg := fmt.Sprintf("local `%s` in `%s` is a new handle while `self.%s` is also used; closures observe the local copy, not the field",
			h.Name, sp.name, h.Name)
		t.report.Add(t.det.CreateFinding(t.ctx, core.SeverityWarning, core.RuleShadowedField, msg, h.Pos).
			WithSuggestion(cloneSuggestion(h.Name)))
	}
}

// scanLet 识别 `let name = <构造>` 行
func (t *textScan) scanLet(closures *ClosureContext, l int) {
	line := t.code[l]
	m := letPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return
	}
	name := line[m[2]:m[3]]
	init := unwrapInit(line[m[4]:m[5]])
	p := core.Position{Line: l + 1, Column: m[0] + 1}

	kind := t.classify(closures, line, init)
	if kind == ConstructionNone {
		closures.Forget(name)
		return
	}
	closures.TrackHandle(name, kind.Origin(), p)
	if !kind.Reportable() || !closures.CreatesClosures() {
		return
	}
	t.report.Add(t.det.CreateFinding(t.ctx, kind.Severity(), kind.RuleCode(),
		constructionMessage(kind, name, closures.FunctionName()), p).
		WithSuggestion(cloneSuggestion(name)))
}

// classify 文本版构造模式匹配
func (t *textScan) classify(closures *ClosureContext, line, init string) ConstructionKind {
	if selfCloneIdiom.MatchString(line) {
		return ConstructionCloneFromSelf
	}
	// `Rc::clone(&local)` 沿用局部句柄的来源
	if m := assocCloneLocal.FindStringSubmatch(compact(init)); m != nil && t.opts.IsHandleType(m[1]) {
		if h, ok := closures.Handle(m[2]); ok && h.Origin == OriginSelfClone {
			return ConstructionCloneFromSelf
		}
	}

	for _, typ := range append(append([]string{}, t.opts.HandleTypes...), t.opts.WeakTypes...) {
		for _, op := range t.opts.RelaunderOps {
			if hasAssocCall(init, typ, op) {
				return ConstructionRelaunder
			}
		}
	}
	for _, alias := range t.table.Aliases() {
		for _, ctor := range t.opts.Constructors {
			if startsWithAssocCall(init, alias, ctor) {
				return ConstructionAlias
			}
		}
	}
	for _, helper := range t.table.Helpers() {
		for _, prefix := range []string{"", "Self::", "self."} {
			if strings.HasPrefix(compact(init), prefix+helper+"(") {
				return ConstructionHelper
			}
		}
	}
	for _, typ := range t.opts.HandleTypes {
		for _, ctor := range t.opts.Constructors {
			if startsWithAssocCall(init, typ, ctor) {
				return ConstructionDirect
			}
		}
	}
	for _, method := range t.opts.ChainMethods {
		if strings.Contains(compact(init), "."+method+"(") {
			return ConstructionMethodChain
		}
	}
	if m := receiverClone.FindStringSubmatch(init); m != nil {
		if h, ok := closures.Handle(m[1]); ok {
			if h.Origin == OriginSelfClone {
				return ConstructionCloneFromSelf
			}
			return ConstructionMethodChain
		}
	}
	return ConstructionNone
}

// checkClosureCaptures SS-005：闭包文本中引用了新建的局部句柄
func (t *textScan) checkClosureCaptures(closures *ClosureContext, sp fnSpan, l, tokenAt int) {
	if !closures.CreatesClosures() {
		return
	}
	text := closureText(t.code, l, tokenAt, sp.end)
	var captured []string
	for _, h := range closures.Handles() {
		if h.Origin == OriginConstructed && containsWord(text, h.Name) {
			captured = append(captured, h.Name)
		}
	}
	if len(captured) == 0 {
		return
	}
	msg := fmt.Sprintf("closure in `%s` captures locally constructed handle %s instead of a clone of the field owned by self",
		sp.name, quoteNames(captured))
	t.report.Add(t.det.CreateFinding(t.ctx, core.SeverityWarning, core.RuleMissingSelfClone, msg,
		core.Position{Line: l + 1, Column: tokenAt + 1}).
		WithSuggestion(cloneSuggestion(captured[0])))
}

func (t *textScan) hasClosureToken(line string) bool {
	return t.closureTokenIndex(line) >= 0
}

// closureTokenIndex 行内第一个闭包引导标记的位置
func (t *textScan) closureTokenIndex(line string) int {
	best := -1
	for _, tok := range t.opts.ClosureTokens {
		if i := strings.Index(line, tok); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// closureText 从标记处开始截取闭包文本，花括号未闭合时继续向后取行
func closureText(code []string, l, from, limit int) string {
	var b strings.Builder
	depth := 0
	for i := l; i <= limit && i < len(code); i++ {
		line := code[i]
		if i == l {
			line = line[from:]
		}
		b.WriteString(line)
		b.WriteByte('\n')
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			break
		}
	}
	return b.String()
}

// unwrapInit 去掉初始化表达式开头的 `unsafe {` / `{`
func unwrapInit(init string) string {
	s := strings.TrimSpace(init)
	for i := 0; i < core.MaxUnwrapDepth; i++ {
		switch {
		case strings.HasPrefix(s, "unsafe"):
			rest := strings.TrimSpace(strings.TrimPrefix(s, "unsafe"))
			if !strings.HasPrefix(rest, "{") {
				return s
			}
			s = strings.TrimSpace(rest[1:])
		case strings.HasPrefix(s, "{"):
			s = strings.TrimSpace(s[1:])
		default:
			return s
		}
	}
	return s
}

// compact 删除空白与泛型参数，便于做前缀匹配
func compact(s string) string {
	return core.StripGenerics(s)
}

// startsWithAssocCall init 是否以 `[path::]Type[::<..>]::fn(` 开头
func startsWithAssocCall(init, typ, fn string) bool {
	c := compact(init)
	segs := strings.SplitN(c, "(", 2)
	if len(segs) < 2 {
		return false
	}
	path := core.SplitPath(segs[0])
	if len(path) < 2 {
		return false
	}
	return path[len(path)-1] == fn && path[len(path)-2] == typ
}

// hasAssocCall 文本中任意位置出现 `Type::fn(`
func hasAssocCall(text, typ, fn string) bool {
	c := compact(text)
	idx := strings.Index(c, typ+"::"+fn+"(")
	for idx >= 0 {
		if idx == 0 || !isIdentByte(c[idx-1]) {
			return true
		}
		next := strings.Index(c[idx+1:], typ+"::"+fn+"(")
		if next < 0 {
			return false
		}
		idx += next + 1
	}
	return false
}

// selfFields 行内出现的 `self.<field>`（排除方法调用）
func selfFields(line string) []string {
	var out []string
	rest := line
	for {
		i := strings.Index(rest, "self.")
		if i < 0 {
			return out
		}
		if i > 0 && isIdentByte(rest[i-1]) {
			rest = rest[i+5:]
			continue
		}
		rest = rest[i+5:]
		j := 0
		for j < len(rest) && isIdentByte(rest[j]) {
			j++
		}
		if j > 0 && (j >= len(rest) || rest[j] != '(') {
			out = append(out, rest[:j])
		}
	}
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for i := strings.Index(text, word); i >= 0; {
		end := i + len(word)
		before := i == 0 || !isIdentByte(text[i-1])
		after := end >= len(text) || !isIdentByte(text[end])
		if before && after {
			return true
		}
		next := strings.Index(text[i+1:], word)
		if next < 0 {
			return false
		}
		i += next + 1
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// sanitizeLines 去掉注释、清空字符串与字符字面量内容，保持列位置不变
func sanitizeLines(lines []string) []string {
	out := make([]string, len(lines))
	inBlock := 0
	inString := false
	for i, line := range lines {
		b := []byte(line)
		for j := 0; j < len(b); j++ {
			switch {
			case inBlock > 0:
				if b[j] == '*' && j+1 < len(b) && b[j+1] == '/' {
					inBlock--
					b[j], b[j+1] = ' ', ' '
					j++
				} else if b[j] == '/' && j+1 < len(b) && b[j+1] == '*' {
					inBlock++
					b[j], b[j+1] = ' ', ' '
					j++
				} else {
					b[j] = ' '
				}
			case inString:
				if b[j] == '\\' && j+1 < len(b) {
					b[j], b[j+1] = ' ', ' '
					j++
				} else if b[j] == '"' {
					inString = false
				} else {
					b[j] = ' '
				}
			case b[j] == '/' && j+1 < len(b) && b[j+1] == '/':
				for k := j; k < len(b); k++ {
					b[k] = ' '
				}
				j = len(b)
			case b[j] == '/' && j+1 < len(b) && b[j+1] == '*':
				inBlock++
				b[j], b[j+1] = ' ', ' '
				j++
			case b[j] == '"':
				inString = true
			case b[j] == '\'':
				j = blankCharLiteral(b, j)
			}
		}
		out[i] = string(b)
	}
	return out
}

// blankCharLiteral 清空 `'x'` / `'\n'` 字符字面量；生命周期标注保持原样
func blankCharLiteral(b []byte, j int) int {
	if j+2 < len(b) && b[j+1] != '\\' && b[j+2] == '\'' {
		b[j+1] = ' '
		return j + 2
	}
	if j+1 < len(b) && b[j+1] == '\\' {
		for k := j + 2; k < len(b) && k < j+12; k++ {
			if b[k] == '\'' {
				for m := j + 1; m < k; m++ {
					b[m] = ' '
				}
				return k
			}
		}
	}
	return j
}
