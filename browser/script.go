package browser

import (
	"encoding/json"
	"fmt"
)

// resolveScript resolves a locator chain in the page and applies one
// operation to the matches. It always returns {found, count, text}.
const resolveScript = `(function(chain, op, arg) {
	function norm(s) { return (s || '').replace(/\s+/g, ' ').trim(); }
	function textOf(el) { return el.innerText !== undefined ? el.innerText : (el.textContent || ''); }

	function byText(root, q) {
		var test;
		var m = q.match(/^\/(.*)\/([a-z]*)$/);
		if (m) {
			var re = new RegExp(m[1], m[2]);
			test = function(s) { return re.test(s); };
		} else {
			var needle = norm(q).toLowerCase();
			test = function(s) { return norm(s).toLowerCase().indexOf(needle) !== -1; };
		}
		var all = root.querySelectorAll('*');
		var hits = [];
		for (var i = 0; i < all.length; i++) {
			var el = all[i];
			if (el.tagName === 'SCRIPT' || el.tagName === 'STYLE') continue;
			if (test(el.textContent || '')) hits.push(el);
		}
		// keep the innermost matches only
		return hits.filter(function(el) {
			for (var j = 0; j < hits.length; j++) {
				if (hits[j] !== el && el.contains(hits[j])) return false;
			}
			return true;
		});
	}

	function query(root, q) {
		if (q.indexOf('css=') === 0) return Array.prototype.slice.call(root.querySelectorAll(q.slice(4)));
		if (q.indexOf('text=') === 0) return byText(root, q.slice(5));
		if (q.indexOf('xpath=') === 0) {
			var r = document.evaluate(q.slice(6), root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			var out = [];
			for (var i = 0; i < r.snapshotLength; i++) {
				var n = r.snapshotItem(i);
				if (n && n.nodeType === 1) out.push(n);
			}
			return out;
		}
		return Array.prototype.slice.call(root.querySelectorAll(q));
	}

	var nodes = [document];
	for (var s = 0; s < chain.length; s++) {
		var next = [];
		for (var k = 0; k < nodes.length; k++) {
			var found;
			try { found = query(nodes[k], chain[s].q); } catch (e) { found = []; }
			for (var f = 0; f < found.length; f++) {
				if (next.indexOf(found[f]) === -1) next.push(found[f]);
			}
		}
		if (chain[s].n >= 0) next = next.length > chain[s].n ? [next[chain[s].n]] : [];
		nodes = next;
	}

	var res = {found: nodes.length > 0, count: nodes.length, text: ''};
	if (!res.found) return res;
	var el = nodes[0];
	switch (op) {
	case 'text':
		res.text = textOf(el);
		break;
	case 'click':
		if (el.scrollIntoView) el.scrollIntoView({block: 'center'});
		el.click();
		break;
	case 'focus':
		if (el.scrollIntoView) el.scrollIntoView({block: 'center'});
		el.focus();
		if ('value' in el) {
			el.value = '';
			el.dispatchEvent(new Event('input', {bubbles: true}));
		}
		break;
	}
	return res;
})`

type resolveResult struct {
	Found bool   `json:"found"`
	Count int    `json:"count"`
	Text  string `json:"text"`
}

func buildResolve(loc Locator, op, arg string) (string, error) {
	chain, err := json.Marshal(loc.Steps())
	if err != nil {
		return "", fmt.Errorf("encode locator: %w", err)
	}
	opJSON, _ := json.Marshal(op)
	argJSON, _ := json.Marshal(arg)
	return fmt.Sprintf("%s(%s, %s, %s)", resolveScript, chain, opJSON, argJSON), nil
}

// snapshotScript reads the current origin's localStorage.
const snapshotScript = `(function() {
	var items = {};
	try {
		for (var i = 0; i < localStorage.length; i++) {
			var k = localStorage.key(i);
			items[k] = localStorage.getItem(k);
		}
	} catch (e) {}
	return {origin: location.origin, localStorage: items};
})()`

// restoreScript replays localStorage for one origin on every new document.
func restoreScript(origin string, items map[string]string) (string, error) {
	originJSON, err := json.Marshal(origin)
	if err != nil {
		return "", err
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function() {
	if (location.origin !== %s) return;
	var items = %s;
	try {
		for (var k in items) {
			if (localStorage.getItem(k) === null) localStorage.setItem(k, items[k]);
		}
	} catch (e) {}
})()`, originJSON, itemsJSON), nil
}
