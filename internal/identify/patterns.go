package identify

import "regexp"

// Pattern binds a precompiled regex to the hash type it identifies. The
// table is evaluated top to bottom; when more than one pattern matches a
// line, the highest-confidence match wins, ties broken by table order
// (earlier entry wins). Entries are kept distinct even where two historical
// hash types share a mode number or, as with MD5 and NTLM below, an
// identical raw shape — the confidence ordering is the documented
// disambiguator, not a table-construction accident.
type Pattern struct {
	Name       string
	Mode       int
	Confidence float64
	re         *regexp.Regexp
}

func p(name string, mode int, confidence float64, expr string) Pattern {
	return Pattern{Name: name, Mode: mode, Confidence: confidence, re: regexp.MustCompile("(?i)" + expr)}
}

// Table is the ordered hash-pattern table, grounded on hash_analyzer.py's
// HASH_PATTERNS. MD5 is listed ahead of NTLM so that, for a bare 32-hex-char
// string, MD5's higher confidence (0.9 vs 0.7) wins deterministically.
var Table = []Pattern{
	p("MD5", 0, 0.9, `^[a-f0-9]{32}$`),
	p("MD5 with salt", 10, 0.9, `^[a-f0-9]{32}:[a-f0-9]+$`),
	p("MD5 Crypt", 500, 1.0, `^\$1\$[a-zA-Z0-9./]{8}\$[a-zA-Z0-9./]{22}$`),

	p("SHA1", 100, 0.9, `^[a-f0-9]{40}$`),
	p("SHA256", 1400, 0.9, `^[a-f0-9]{64}$`),
	p("SHA384", 10800, 0.9, `^[a-f0-9]{96}$`),
	p("SHA512", 1700, 0.9, `^[a-f0-9]{128}$`),
	p("SHA512 Crypt", 1800, 1.0, `^\$6\$[a-zA-Z0-9./]{8,16}\$[a-zA-Z0-9./]{86}$`),

	p("NTLM", 1000, 0.7, `^[a-f0-9]{32}$`),
	p("NetNTLMv1", 5500, 0.95, `^[a-f0-9]{32}:[a-f0-9]{32}$`),
	p("NetNTLMv2", 5600, 0.9, `^[a-zA-Z0-9+/]{27,}=$`),

	p("bcrypt", 3200, 1.0, `^\$2[ayb]\$[0-9]{2}\$[a-zA-Z0-9./]{53}$`),

	p("MySQL 4.1+", 300, 1.0, `^\*[A-F0-9]{40}$`),
	p("MySQL 3.x", 200, 0.8, `^[a-f0-9]{16}$`),

	p("PostgreSQL MD5", 12, 1.0, `^md5[a-f0-9]{32}$`),

	p("Kerberos 5 TGS-REP", 13100, 1.0, `^\$krb5tgs\$`),
	p("Kerberos 5 AS-REP", 7500, 1.0, `^\$krb5pa\$`),

	p("MS Office", 9400, 1.0, `^\$office\$`),
	p("PDF", 10500, 1.0, `^\$pdf\$`),

	p("phpBB3/WordPress", 400, 1.0, `^\$P\$[a-zA-Z0-9./]{31}$`),
	p("phpBB3/WordPress (alt)", 400, 1.0, `^\$H\$[a-zA-Z0-9./]{31}$`),
	p("Django SHA1", 800, 1.0, `^sha1\$[a-f0-9]{8}\$[a-f0-9]{40}$`),

	p("Argon2i", 10900, 1.0, `^\$argon2i\$`),
	p("Argon2d", 11300, 1.0, `^\$argon2d\$`),
	p("Argon2id", 11900, 1.0, `^\$argon2id\$`),

	p("Ethereum Wallet", 15700, 1.0, `^\$ethereum\$`),
	p("Bitcoin Wallet", 11300, 1.0, `^\$bitcoin\$`),
	p("MetaMask Wallet", 26600, 1.0, `^metamask:`),

	p("LUKS2", 29543, 1.0, `^\$luks\$`),
	p("Ansible Vault", 16900, 1.0, `^\$ansible\$`),
	p("ZIP3 AES-256", 24700, 1.0, `^\$zip3\$`),

	p("Okta PBKDF2-SHA512", 10900, 1.0, `^\$okta\$`),
	p("MongoDB SCRAM", 24700, 1.0, `^\$mongodb-scram\$`),
	p("Microsoft Online Account", 27800, 1.0, `^\$msonline\$`),

	p("SNMPv3 HMAC-SHA*-AES*", 25000, 1.0, `^\$snmpv3\$`),
	p("OpenSSH Private Key", 22921, 1.0, `^\$ssh\$`),
	p("GPG Secret Key", 17010, 1.0, `^\$gpg\$`),

	p("JWT Token", 16500, 1.0, `^ey[A-Za-z0-9-_]+\.ey[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+$`),
}
