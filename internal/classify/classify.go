// Package classify assigns importance, category, and tags to normalized
// records from pure text heuristics. Every function here is deterministic and
// does no I/O: the same (title, content) pair always classifies identically.
//
// All keyword rules are table-driven so tests can enumerate every
// (keyword, expected result) pair.
package classify

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/feed-pulse/internal/models"
)

// highKeywords mark announcements that demand immediate attention.
// Checked before the medium list; a single hit short-circuits to high.
// English and Chinese variants are listed together because several upstreams
// publish bilingual titles.
var highKeywords = []string{
	"delist", "delisting", "下架", "退市",
	"suspend", "suspension", "暂停",
	"security", "hack", "exploit", "安全",
	"maintenance", "维护",
	"will list", "new listing", "上线", "上币",
	"airdrop", "空投",
	"hard fork", "fork", "分叉",
	"token burn", "burn", "销毁",
	"snapshot", "快照",
}

// mediumKeywords mark routine but noteworthy operational announcements.
var mediumKeywords = []string{
	"trading", "交易",
	"deposit", "充值",
	"withdrawal", "withdraw", "提现",
	"update", "upgrade", "更新", "升级",
	"margin", "保证金",
	"futures", "perpetual", "合约",
	"staking", "stake", "质押",
	"api",
	"promotion", "活动",
}

// Length-based fallback thresholds, counted in characters: long titles or
// bodies tend to be substantive announcements even without a keyword hit.
const (
	mediumTitleLen   = 50
	mediumContentLen = 200
)

type categoryRule struct {
	category models.Category
	keywords []string
}

// categoryRules is a fixed priority-ordered mapping; the first rule with a
// keyword hit wins. Order matters: listing outranks delisting, so the listing
// keyword set must never use the bare substring "listing" — it is contained
// in "delisting" and would steal every delisting record.
var categoryRules = []categoryRule{
	{models.CategoryListing, []string{"will list", "new listing", "listing of", "launchpad", "launchpool", "上线", "上币"}},
	{models.CategoryDelisting, []string{"delist", "removal", "remove", "下架", "退市"}},
	{models.CategoryTrading, []string{"trading pair", "trading", "spot", "交易"}},
	{models.CategoryDerivatives, []string{"futures", "perpetual", "margin", "leverage", "option", "合约", "杠杆"}},
	{models.CategoryEarn, []string{"staking", "stake", "earn", "savings", "yield", "apy", "质押", "理财"}},
	{models.CategoryMaintenance, []string{"maintenance", "upgrade", "suspend", "维护", "升级", "暂停"}},
	{models.CategoryPromotion, []string{"promotion", "giveaway", "airdrop", "reward", "competition", "活动", "空投"}},
	{models.CategorySecurity, []string{"security", "hack", "exploit", "phishing", "vulnerability", "安全"}},
	{models.CategoryWallet, []string{"wallet", "deposit", "withdrawal", "withdraw", "钱包", "充值", "提现"}},
	{models.CategoryAPI, []string{"api", "websocket", "endpoint", "rate limit"}},
	{models.CategoryMobile, []string{"mobile", "app version", "ios", "android"}},
	{models.CategoryRegulatory, []string{"regulatory", "regulation", "compliance", "license", "kyc", "监管", "合规"}},
	{models.CategoryService, []string{"service", "support", "customer", "notice", "服务", "公告"}},
}

type tagRule struct {
	tag      string
	keywords []string
}

// featureTags attach a fixed tag per feature keyword set. Unlike category
// rules, many feature tags may fire on one record.
var featureTags = []tagRule{
	{"listing", []string{"will list", "new listing", "listing of", "上线", "上币"}},
	{"delisting", []string{"delist", "下架", "退市"}},
	{"airdrop", []string{"airdrop", "空投"}},
	{"staking", []string{"staking", "stake", "质押"}},
	{"futures", []string{"futures", "perpetual", "合约"}},
	{"margin", []string{"margin", "leverage", "杠杆"}},
	{"maintenance", []string{"maintenance", "维护"}},
	{"security", []string{"security", "hack", "exploit", "安全"}},
	{"snapshot", []string{"snapshot", "快照"}},
	{"burn", []string{"burn", "销毁"}},
	{"fork", []string{"hard fork", "fork", "分叉"}},
	{"defi", []string{"defi", "liquidity pool", "amm", "dex"}},
}

// networkTags attach chain-name tags.
var networkTags = []tagRule{
	{"ethereum", []string{"ethereum", "erc-20", "erc20"}},
	{"bsc", []string{"bnb chain", "bep-20", "bep20", "bsc"}},
	{"solana", []string{"solana", "spl"}},
	{"polygon", []string{"polygon", "matic"}},
	{"arbitrum", []string{"arbitrum"}},
	{"optimism", []string{"optimism"}},
	{"tron", []string{"tron", "trc-20", "trc20"}},
	{"avalanche", []string{"avalanche", "avax"}},
	{"bitcoin", []string{"bitcoin network", "lightning"}},
}

var urgentKeywords = []string{"immediately", "urgent", "emergency", "asap", "紧急"}

var scheduledKeywords = []string{"scheduled", "will be", "upcoming", "计划", "将于"}

// tickerPattern matches ticker-like uppercase tokens in titles.
var tickerPattern = regexp.MustCompile(`\b[A-Z]{3,8}\b`)

// tickerExclude filters common English words that collide with the ticker
// pattern when titles are written in all-caps house style.
var tickerExclude = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "NEW": true, "NOW": true,
	"ALL": true, "WILL": true, "WITH": true, "FROM": true, "THIS": true,
	"THAT": true, "HAS": true, "ARE": true, "API": true, "APP": true,
	"WEB": true, "AMA": true, "FAQ": true, "CEO": true, "USA": true,
	"UTC": true, "GMT": true, "ETA": true, "PDF": true, "NOT": true,
	"OUT": true, "OFF": true, "VIA": true, "GET": true, "CAN": true,
}

// Result bundles the full classifier output for one record.
type Result struct {
	Category   models.Category
	Importance models.Importance
	Tags       []string
}

// Classify runs importance, category, and tag assignment on one record's
// text. It is the single entry point the aggregation pipeline uses.
func Classify(title, content string) Result {
	return Result{
		Category:   Categorize(title, content),
		Importance: Importance(title, content),
		Tags:       Tags(title, content),
	}
}

// Importance assigns low/medium/high from keyword heuristics. High-priority
// keywords are checked first and win over medium; with no keyword hit, long
// text falls through to medium, everything else to low.
func Importance(title, content string) models.Importance {
	text := strings.ToLower(title + " " + content)

	for _, kw := range highKeywords {
		if strings.Contains(text, kw) {
			return models.ImportanceHigh
		}
	}
	for _, kw := range mediumKeywords {
		if strings.Contains(text, kw) {
			return models.ImportanceMedium
		}
	}
	if utf8.RuneCountInString(title) > mediumTitleLen || utf8.RuneCountInString(content) > mediumContentLen {
		return models.ImportanceMedium
	}
	return models.ImportanceLow
}

// Categorize assigns the record category: first matching rule in the
// priority-ordered table wins, falling back to general.
func Categorize(title, content string) models.Category {
	text := strings.ToLower(title + " " + content)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return models.CategoryGeneral
}

// Tags extracts the union of ticker tokens, feature tags, network tags, and
// urgency/scheduling tags, deduplicated with set semantics and returned in
// sorted order for determinism.
func Tags(title, content string) []string {
	text := strings.ToLower(title + " " + content)
	set := make(map[string]bool)

	// Ticker-like tokens come from the title only; body text is too noisy.
	for _, token := range tickerPattern.FindAllString(title, -1) {
		if !tickerExclude[token] {
			set[token] = true
		}
	}

	for _, rule := range featureTags {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				set[rule.tag] = true
				break
			}
		}
	}
	for _, rule := range networkTags {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				set[rule.tag] = true
				break
			}
		}
	}
	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			set["urgent"] = true
			break
		}
	}
	for _, kw := range scheduledKeywords {
		if strings.Contains(text, kw) {
			set["scheduled"] = true
			break
		}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
