package server

import (
	"fmt"
	"net/http"
)

// handleClientJS serves the pg.js collector script.
func (s *Server) handleClientJS(w http.ResponseWriter, r *http.Request) {
	serverURL := s.cfg.BaseURL
	if serverURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		serverURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	script := GenerateClientScript(serverURL)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(script))
}

// GenerateClientScript generates the pg.js collector with the given server
// URL. The script batches raw browser events to the beacon endpoint and
// dispatches a popgate:show DOM event for every decision that comes back;
// rendering is left to the page.
func GenerateClientScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';
  var sid=sessionStorage.getItem('pg_sid')||'';
  var q=[];
  var mobile=/Mobi|Android/i.test(navigator.userAgent);

  function flush(){
    if(!q.length)return;
    var events=q;q=[];
    fetch(S+'/b',{
      method:'POST',
      headers:{'Content-Type':'application/json'},
      body:JSON.stringify({sid:sid,url:location.href,events:events})
    }).then(function(r){return r.json();}).then(function(res){
      if(res.sid){sid=res.sid;sessionStorage.setItem('pg_sid',sid);}
      (res.show||[]).forEach(function(item){
        document.dispatchEvent(new CustomEvent('popgate:show',{detail:item}));
      });
    }).catch(function(){});
  }

  function push(ev){q.push(ev);}

  // Page load
  push({type:'load',mobile:mobile});
  flush();

  // Cursor samples (throttled) and exit gesture
  var lastMove=0;
  document.addEventListener('mousemove',function(e){
    var now=Date.now();
    if(now-lastMove<100)return;
    lastMove=now;
    push({type:'pointer',x:e.clientX,y:e.clientY});
  });
  document.addEventListener('mouseout',function(e){
    if(e.relatedTarget===null){
      push({type:'pointerleave',target:'document'});
      flush();
    }
  });

  // Scroll depth (throttled)
  var lastScroll=0;
  function onScroll(){
    var now=Date.now();
    if(now-lastScroll<100)return;
    lastScroll=now;
    var doc=document.documentElement;
    push({type:'scroll',top:window.scrollY||doc.scrollTop,viewport:window.innerHeight,doc:doc.scrollHeight});
    flush();
  }
  window.addEventListener('scroll',onScroll);
  window.addEventListener('resize',onScroll);

  // Visibility for the time-delay countdown
  document.addEventListener('visibilitychange',function(){
    push({type:document.hidden?'hidden':'visible'});
    flush();
  });

  // Periodic flush so time-delay decisions reach the page promptly
  setInterval(flush,2000);
})();
`, serverURL)
}
